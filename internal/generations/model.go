package generations

import "time"

const (
	StatusPending          = "pending"
	StatusUploading        = "uploading"
	StatusAnalyzing        = "analyzing"
	StatusGeneratingPrompt = "generating_prompt"
	StatusGeneratingImages = "generating_images"
	StatusCompleted        = "completed"
	StatusFailed           = "failed"
)

const DefaultAspectRatio = "1:1"

// Generation is one photoshoot job. Images is non-nil, possibly empty, once
// Status is completed; a terminal row is never written again.
type Generation struct {
	ID           string     `json:"id"`
	UserID       string     `json:"user_id"`
	OrderID      string     `json:"order_id,omitempty"`
	StyleName    string     `json:"style_name,omitempty"`
	CustomPrompt string     `json:"custom_prompt,omitempty"`
	AspectRatio  string     `json:"aspect_ratio"`
	IsFree       bool       `json:"is_free"`
	Status       string     `json:"status"`
	Progress     int        `json:"progress"`
	PromptUsed   string     `json:"prompt_used,omitempty"`
	Images       []string   `json:"images"`
	SourceKey    string     `json:"-"`
	ErrorMessage string     `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

func IsTerminal(status string) bool {
	return status == StatusCompleted || status == StatusFailed
}

// stage is one step of the pipeline as reported to the client.
type stage struct {
	status   string
	progress int
	message  string
}

var (
	stageUploading        = stage{StatusUploading, 10, "Загрузка изображения..."}
	stageAnalyzing        = stage{StatusAnalyzing, 30, "Анализ продукта..."}
	stageGeneratingPrompt = stage{StatusGeneratingPrompt, 50, "Создание промпта для AI..."}
	stageGeneratingImages = stage{StatusGeneratingImages, 70, "Генерация изображений..."}
	stageCompleted        = stage{StatusCompleted, 100, "Готово!"}
)

const failedMessagePrefix = "Ошибка генерации: "

var stageMessages = map[string]string{
	StatusPending:          "В очереди...",
	StatusUploading:        stageUploading.message,
	StatusAnalyzing:        stageAnalyzing.message,
	StatusGeneratingPrompt: stageGeneratingPrompt.message,
	StatusGeneratingImages: stageGeneratingImages.message,
	StatusCompleted:        stageCompleted.message,
}
