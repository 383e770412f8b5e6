package generations

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"photoshoot-backend/internal/ai"
	"photoshoot-backend/internal/credits"
	"photoshoot-backend/internal/realtime"
	"photoshoot-backend/internal/shared/metrics"
	"photoshoot-backend/internal/shared/storage/object"
	"photoshoot-backend/internal/shared/telemetry"
)

var (
	ErrPaymentRequired = errors.New("no photoshoots remaining")
	ErrInvalidImage    = errors.New("invalid image data")
	ErrInvalidInput    = errors.New("invalid input")
)

// AspectRatios lists the ratios the image model accepts.
var AspectRatios = map[string]struct{}{
	"1:1":  {},
	"3:4":  {},
	"4:3":  {},
	"9:16": {},
	"16:9": {},
	"2:3":  {},
	"3:2":  {},
}

// Balances reads a user's remaining photoshoots.
type Balances interface {
	Balance(ctx context.Context, userID string) (int, error)
}

// StyleResolver turns a saved style preset into a style description.
type StyleResolver interface {
	ResolveStyle(ctx context.Context, userID, presetID string) (string, error)
}

type CreateInput struct {
	Image         []byte
	StyleName     string
	CustomPrompt  string
	AspectRatio   string
	StylePresetID string
}

type Service struct {
	Repo     Repo
	Balances Balances
	Styles   StyleResolver
	AI       ai.Client
	Store    object.ObjectStore
	Push     realtime.Pusher
	Tasks    *TaskSet
	// ImagesPerJob is the number of images requested and credited per photoshoot.
	ImagesPerJob int
	PromptSuffix string
	now          func() time.Time
}

func NewService(repo Repo, balances Balances, client ai.Client, store object.ObjectStore, push realtime.Pusher, tasks *TaskSet, imagesPerJob int) *Service {
	if imagesPerJob <= 0 {
		imagesPerJob = 4
	}
	if tasks == nil {
		tasks = NewTaskSet()
	}
	return &Service{
		Repo:         repo,
		Balances:     balances,
		AI:           client,
		Store:        store,
		Push:         push,
		Tasks:        tasks,
		ImagesPerJob: imagesPerJob,
		PromptSuffix: DefaultPromptSuffix,
		now:          time.Now,
	}
}

// Create admits a job and starts its pipeline in the background. The
// returned record is the queued state; nothing is created when the user has
// no balance left.
func (s *Service) Create(ctx context.Context, userID string, in CreateInput) (Generation, error) {
	if s == nil || s.Repo == nil || s.Balances == nil {
		return Generation{}, errors.New("generations service not configured")
	}
	if len(in.Image) == 0 {
		return Generation{}, ErrInvalidImage
	}
	if !strings.HasPrefix(mimetype.Detect(in.Image).String(), "image/") {
		return Generation{}, ErrInvalidImage
	}
	aspect := strings.TrimSpace(in.AspectRatio)
	if aspect == "" {
		aspect = DefaultAspectRatio
	}
	if _, ok := AspectRatios[aspect]; !ok {
		return Generation{}, fmt.Errorf("%w: unsupported aspect ratio %q", ErrInvalidInput, aspect)
	}

	balance, err := s.Balances.Balance(ctx, userID)
	if err != nil {
		return Generation{}, fmt.Errorf("load balance: %w", err)
	}
	if balance <= 0 {
		return Generation{}, ErrPaymentRequired
	}

	style, err := s.resolveStyle(ctx, userID, in)
	if err != nil {
		return Generation{}, err
	}

	gen := Generation{
		ID:           uuid.NewString(),
		UserID:       userID,
		StyleName:    strings.TrimSpace(in.StyleName),
		CustomPrompt: strings.TrimSpace(in.CustomPrompt),
		AspectRatio:  aspect,
		Status:       StatusPending,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.Repo.Create(ctx, gen); err != nil {
		return Generation{}, fmt.Errorf("create generation: %w", err)
	}
	metrics.IncGenerationStarted()
	telemetry.Info("generation.accepted", map[string]any{
		"request_id":    telemetry.RequestIDFrom(ctx),
		"generation_id": gen.ID,
		"user_id":       userID,
		"aspect_ratio":  aspect,
		"image_bytes":   len(in.Image),
	})

	jobCtx := context.WithoutCancel(ctx)
	image := in.Image
	s.Tasks.Go("generation:"+gen.ID, func() {
		s.Run(jobCtx, gen, image, style, aspect)
	})
	return gen, nil
}

func (s *Service) resolveStyle(ctx context.Context, userID string, in CreateInput) (string, error) {
	if style := strings.TrimSpace(in.StyleName); style != "" {
		return style, nil
	}
	if prompt := strings.TrimSpace(in.CustomPrompt); prompt != "" {
		return prompt, nil
	}
	if presetID := strings.TrimSpace(in.StylePresetID); presetID != "" && s.Styles != nil {
		style, err := s.Styles.ResolveStyle(ctx, userID, presetID)
		if err != nil {
			return "", fmt.Errorf("%w: style preset: %v", ErrInvalidInput, err)
		}
		if style = strings.TrimSpace(style); style != "" {
			return style, nil
		}
	}
	return "", fmt.Errorf("%w: style_name, custom_prompt or style_preset_id is required", ErrInvalidInput)
}

// Run drives one job through its stages. The outcome is reported only
// through pushed events and the persisted record.
func (s *Service) Run(ctx context.Context, job Generation, image []byte, style, aspectRatio string) {
	started := s.now()
	defer func() {
		if r := recover(); r != nil {
			s.fail(ctx, job, fmt.Errorf("panic: %v", r), started)
		}
	}()
	if err := s.run(ctx, job, image, style, aspectRatio, started); err != nil {
		s.fail(ctx, job, err, started)
	}
}

func (s *Service) run(ctx context.Context, job Generation, image []byte, style, aspectRatio string, started time.Time) error {
	if err := s.enter(ctx, job, stageUploading); err != nil {
		return err
	}
	if err := s.storeSource(ctx, job, image); err != nil {
		return err
	}

	if err := s.enter(ctx, job, stageAnalyzing); err != nil {
		return err
	}
	description := s.AI.DescribeImage(ctx, image)

	if err := s.enter(ctx, job, stageGeneratingPrompt); err != nil {
		return err
	}
	prompt := BuildPrompt(description, style, s.PromptSuffix)

	if err := s.enter(ctx, job, stageGeneratingImages); err != nil {
		return err
	}
	images := s.AI.SynthesizeImages(ctx, prompt, aspectRatio, s.ImagesPerJob)
	if images == nil {
		images = []string{}
	}

	if err := s.Repo.Complete(ctx, job.ID, job.UserID, prompt, images, s.ImagesPerJob); err != nil {
		if errors.Is(err, credits.ErrInsufficientCredit) {
			return errors.New("недостаточно фотосессий на балансе")
		}
		return fmt.Errorf("finalize: %w", err)
	}
	s.push(job, realtime.Event{
		Status:   stageCompleted.status,
		Progress: stageCompleted.progress,
		Message:  stageCompleted.message,
		Images:   images,
		ImageID:  job.ID,
	})

	elapsed := s.now().Sub(started)
	metrics.ObserveGenerationFinished(StatusCompleted, elapsed)
	telemetry.Info("generation.completed", map[string]any{
		"request_id":    telemetry.RequestIDFrom(ctx),
		"generation_id": job.ID,
		"user_id":       job.UserID,
		"images":        len(images),
		"duration_ms":   elapsed.Milliseconds(),
	})
	return nil
}

// enter announces a stage and then records it.
func (s *Service) enter(ctx context.Context, job Generation, st stage) error {
	s.push(job, realtime.Event{Status: st.status, Progress: st.progress, Message: st.message})
	if err := s.Repo.SetStage(ctx, job.ID, st.status, st.progress); err != nil {
		return fmt.Errorf("set stage %s: %w", st.status, err)
	}
	return nil
}

func (s *Service) storeSource(ctx context.Context, job Generation, image []byte) error {
	if s.Store == nil {
		return nil
	}
	contentType := mimetype.Detect(image).String()
	key := object.SourceKey(job.UserID, job.ID, contentType)
	if _, err := s.Store.Put(ctx, key, contentType, bytes.NewReader(image)); err != nil {
		return fmt.Errorf("store source image: %w", err)
	}
	if err := s.Repo.SetSourceKey(ctx, job.ID, key); err != nil {
		return fmt.Errorf("record source key: %w", err)
	}
	return nil
}

func (s *Service) fail(ctx context.Context, job Generation, err error, started time.Time) {
	msg := sanitizeError(err)
	if markErr := s.Repo.MarkFailed(context.WithoutCancel(ctx), job.ID, msg); markErr != nil {
		telemetry.Error("generation.mark_failed_error", map[string]any{
			"generation_id": job.ID,
			"error":         markErr.Error(),
			"cause":         msg,
		})
		if errors.Is(markErr, ErrTerminal) {
			return
		}
	}
	s.push(job, realtime.Event{
		Status:   StatusFailed,
		Progress: 0,
		Message:  failedMessagePrefix + msg,
	})
	elapsed := s.now().Sub(started)
	metrics.ObserveGenerationFinished(StatusFailed, elapsed)
	telemetry.Error("generation.failed", map[string]any{
		"request_id":    telemetry.RequestIDFrom(ctx),
		"generation_id": job.ID,
		"user_id":       job.UserID,
		"error":         msg,
		"duration_ms":   elapsed.Milliseconds(),
	})
}

func (s *Service) push(job Generation, ev realtime.Event) {
	if s.Push == nil {
		return
	}
	ev.Type = realtime.TypeGenerationUpdate
	ev.JobID = job.ID
	s.Push.Push(job.UserID, ev)
}

// Get returns a generation owned by userID.
func (s *Service) Get(ctx context.Context, userID, generationID string) (Generation, error) {
	gen, err := s.Repo.GetByID(ctx, generationID)
	if err != nil {
		return Generation{}, err
	}
	if gen.UserID != userID {
		return Generation{}, ErrNotFound
	}
	return gen, nil
}

func (s *Service) List(ctx context.Context, userID string, limit, offset int) ([]Generation, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.Repo.ListByUser(ctx, userID, limit, offset)
}

// StatusEvent reports the persisted state of a job in push-event form.
func (s *Service) StatusEvent(ctx context.Context, userID, generationID string) (realtime.Event, error) {
	gen, err := s.Get(ctx, userID, generationID)
	if errors.Is(err, ErrNotFound) {
		return realtime.Event{}, realtime.ErrJobNotFound
	}
	if err != nil {
		return realtime.Event{}, err
	}
	ev := realtime.Event{
		JobID:    gen.ID,
		Status:   gen.Status,
		Progress: gen.Progress,
		Message:  stageMessages[gen.Status],
	}
	switch gen.Status {
	case StatusCompleted:
		ev.Images = gen.Images
		if ev.Images == nil {
			ev.Images = []string{}
		}
		ev.ImageID = gen.ID
	case StatusFailed:
		ev.Message = failedMessagePrefix + gen.ErrorMessage
	}
	return ev, nil
}

func sanitizeError(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.ToValidUTF8(err.Error(), "")
	msg = strings.ReplaceAll(msg, "\n", " ")
	msg = strings.ReplaceAll(msg, "\r", " ")
	msg = strings.TrimSpace(msg)
	const maxLen = 500
	if len(msg) > maxLen {
		cut := maxLen
		for cut > 0 && !utf8.RuneStart(msg[cut]) {
			cut--
		}
		msg = msg[:cut]
	}
	return msg
}
