package generations

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"photoshoot-backend/internal/ai"
	"photoshoot-backend/internal/ai/openrouter"
	"photoshoot-backend/internal/credits"
	"photoshoot-backend/internal/realtime"
	"photoshoot-backend/internal/shared/storage/object/local"
)

var pngBytes = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 13, 'I', 'H', 'D', 'R'}

type ledgerBalances struct {
	ledger *credits.MemoryLedger
}

func (b ledgerBalances) Balance(ctx context.Context, userID string) (int, error) {
	acc, ok := b.ledger.Get(userID)
	if !ok {
		return 0, errors.New("unknown user")
	}
	return acc.ImagesRemaining, nil
}

type recordingPusher struct {
	mu     sync.Mutex
	events map[string][]realtime.Event
}

func newRecordingPusher() *recordingPusher {
	return &recordingPusher{events: make(map[string][]realtime.Event)}
}

func (p *recordingPusher) Push(userID string, payload any) {
	ev, ok := payload.(realtime.Event)
	if !ok {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events[ev.JobID] = append(p.events[ev.JobID], ev)
}

func (p *recordingPusher) forJob(jobID string) []realtime.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]realtime.Event(nil), p.events[jobID]...)
}

func (p *recordingPusher) total() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, evs := range p.events {
		n += len(evs)
	}
	return n
}

type fakeAI struct {
	description string
	images      []string
	describes   atomic.Int32
	panicOn     string
}

func (f *fakeAI) DescribeImage(ctx context.Context, image []byte) string {
	f.describes.Add(1)
	if f.panicOn == "describe" {
		panic("provider exploded")
	}
	return f.description
}

func (f *fakeAI) SynthesizeImages(ctx context.Context, prompt, aspectRatio string, count int) []string {
	if len(f.images) > count {
		return f.images[:count]
	}
	return f.images
}

type failingStore struct{}

func (failingStore) Put(ctx context.Context, key, contentType string, r io.Reader) (int64, error) {
	return 0, errors.New("disk full")
}

func (failingStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	return nil, errors.New("not found")
}

type fixture struct {
	ledger *credits.MemoryLedger
	repo   *MemoryRepo
	push   *recordingPusher
	ai     *fakeAI
	svc    *Service
}

func newFixture(t *testing.T, client ai.Client) *fixture {
	t.Helper()
	ledger := credits.NewMemoryLedger()
	repo := NewMemoryRepo(ledger)
	push := newRecordingPusher()
	f := &fixture{ledger: ledger, repo: repo, push: push}
	if client == nil {
		f.ai = &fakeAI{description: "a glass perfume bottle", images: []string{"u1", "u2", "u3", "u4"}}
		client = f.ai
	}
	f.svc = NewService(repo, ledgerBalances{ledger}, client, local.New(t.TempDir()), push, NewTaskSet(), 4)
	return f
}

func (f *fixture) createAndWait(t *testing.T, userID string) Generation {
	t.Helper()
	gen, err := f.svc.Create(t.Context(), userID, CreateInput{Image: pngBytes, StyleName: "minimalism"})
	require.NoError(t, err)
	require.NoError(t, f.svc.Tasks.Wait(t.Context()))
	stored, err := f.repo.GetByID(t.Context(), gen.ID)
	require.NoError(t, err)
	return stored
}

func assertProgressShape(t *testing.T, events []realtime.Event) {
	t.Helper()
	require.NotEmpty(t, events)
	for i := 1; i < len(events)-1; i++ {
		assert.GreaterOrEqual(t, events[i].Progress, events[i-1].Progress)
	}
	last := events[len(events)-1]
	switch last.Status {
	case StatusCompleted:
		assert.Equal(t, 100, last.Progress)
	case StatusFailed:
		assert.Equal(t, 0, last.Progress)
	default:
		t.Fatalf("last event status %q is not terminal", last.Status)
	}
	for _, ev := range events {
		assert.Equal(t, realtime.TypeGenerationUpdate, ev.Type)
		assert.NotEmpty(t, ev.JobID)
	}
}

func TestCreateReturnsQueuedRecordAndCompletes(t *testing.T) {
	f := newFixture(t, nil)
	f.ledger.Open("user-1", 3)

	gen, err := f.svc.Create(t.Context(), "user-1", CreateInput{Image: pngBytes, StyleName: "minimalism"})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, gen.Status)
	assert.Equal(t, DefaultAspectRatio, gen.AspectRatio)
	assert.Nil(t, gen.Images)

	require.NoError(t, f.svc.Tasks.Wait(t.Context()))

	stored, err := f.repo.GetByID(t.Context(), gen.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, stored.Status)
	assert.Equal(t, []string{"u1", "u2", "u3", "u4"}, stored.Images)
	assert.Contains(t, stored.PromptUsed, "a glass perfume bottle")
	assert.Contains(t, stored.PromptUsed, "minimalism")
	assert.NotEmpty(t, stored.SourceKey)
	assert.NotNil(t, stored.CompletedAt)

	events := f.push.forJob(gen.ID)
	assertProgressShape(t, events)
	statuses := make([]string, 0, len(events))
	for _, ev := range events {
		statuses = append(statuses, ev.Status)
	}
	assert.Equal(t, []string{StatusUploading, StatusAnalyzing, StatusGeneratingPrompt, StatusGeneratingImages, StatusCompleted}, statuses)
	last := events[len(events)-1]
	assert.Equal(t, stored.Images, last.Images)
	assert.Equal(t, gen.ID, last.ImageID)

	acc, _ := f.ledger.Get("user-1")
	assert.Equal(t, 2, acc.ImagesRemaining)
	assert.Equal(t, 4, acc.TotalImagesProcessed)
}

func TestCreateRejectsWithoutBalance(t *testing.T) {
	f := newFixture(t, nil)
	f.ledger.Open("user-1", 0)

	_, err := f.svc.Create(t.Context(), "user-1", CreateInput{Image: pngBytes, StyleName: "loft"})
	require.ErrorIs(t, err, ErrPaymentRequired)

	require.NoError(t, f.svc.Tasks.Wait(t.Context()))
	items, err := f.repo.ListByUser(t.Context(), "user-1", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Zero(t, f.push.total())
	assert.Zero(t, f.ai.describes.Load())
}

func TestCreateRejectsBadInput(t *testing.T) {
	f := newFixture(t, nil)
	f.ledger.Open("user-1", 1)

	_, err := f.svc.Create(t.Context(), "user-1", CreateInput{Image: []byte("definitely not an image"), StyleName: "loft"})
	assert.ErrorIs(t, err, ErrInvalidImage)

	_, err = f.svc.Create(t.Context(), "user-1", CreateInput{Image: pngBytes, StyleName: "loft", AspectRatio: "5:1"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.svc.Create(t.Context(), "user-1", CreateInput{Image: pngBytes})
	assert.ErrorIs(t, err, ErrInvalidInput)

	assert.Zero(t, f.push.total())
}

func TestRunFailsWhenChargeRejected(t *testing.T) {
	f := newFixture(t, nil)
	f.ledger.Open("user-1", 0)
	job := Generation{ID: "job-1", UserID: "user-1", AspectRatio: "1:1", Status: StatusPending}
	require.NoError(t, f.repo.Create(t.Context(), job))

	f.svc.Run(t.Context(), job, pngBytes, "loft", "1:1")

	stored, err := f.repo.GetByID(t.Context(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, stored.Status)
	assert.Nil(t, stored.Images)
	assert.NotEmpty(t, stored.ErrorMessage)

	events := f.push.forJob(job.ID)
	assertProgressShape(t, events)
	assert.True(t, strings.HasPrefix(events[len(events)-1].Message, failedMessagePrefix))
	for _, ev := range events {
		assert.Nil(t, ev.Images)
	}

	acc, _ := f.ledger.Get("user-1")
	assert.Equal(t, 0, acc.ImagesRemaining)
	assert.Equal(t, 0, acc.TotalImagesProcessed)
}

func TestConcurrentCompletionsDoNotLoseUpdates(t *testing.T) {
	f := newFixture(t, nil)
	f.ledger.Open("user-1", 2)

	jobs := make([]Generation, 3)
	for i := range jobs {
		jobs[i] = Generation{ID: "job-" + string(rune('a'+i)), UserID: "user-1", AspectRatio: "1:1", Status: StatusPending}
		require.NoError(t, f.repo.Create(t.Context(), jobs[i]))
	}

	var wg sync.WaitGroup
	for _, job := range jobs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.svc.Run(t.Context(), job, pngBytes, "loft", "1:1")
		}()
	}
	wg.Wait()

	acc, _ := f.ledger.Get("user-1")
	assert.Equal(t, 0, acc.ImagesRemaining)
	assert.Equal(t, 8, acc.TotalImagesProcessed)

	completed, failed := 0, 0
	for _, job := range jobs {
		stored, err := f.repo.GetByID(t.Context(), job.ID)
		require.NoError(t, err)
		events := f.push.forJob(job.ID)
		assertProgressShape(t, events)
		last := events[len(events)-1]
		assert.Equal(t, last.Status, stored.Status)
		switch stored.Status {
		case StatusCompleted:
			completed++
			assert.NotNil(t, stored.Images)
		case StatusFailed:
			failed++
			assert.Nil(t, stored.Images)
		}
	}
	assert.Equal(t, 2, completed)
	assert.Equal(t, 1, failed)
}

func TestRunFailsWhenSourceUploadFails(t *testing.T) {
	f := newFixture(t, nil)
	f.svc.Store = failingStore{}
	f.ledger.Open("user-1", 1)
	job := Generation{ID: "job-1", UserID: "user-1", AspectRatio: "1:1", Status: StatusPending}
	require.NoError(t, f.repo.Create(t.Context(), job))

	f.svc.Run(t.Context(), job, pngBytes, "loft", "1:1")

	events := f.push.forJob(job.ID)
	require.Len(t, events, 2)
	assert.Equal(t, StatusUploading, events[0].Status)
	assert.Equal(t, StatusFailed, events[1].Status)
	assert.Contains(t, events[1].Message, "disk full")
	assert.Zero(t, f.ai.describes.Load())

	acc, _ := f.ledger.Get("user-1")
	assert.Equal(t, 1, acc.ImagesRemaining)
}

func TestRunRecoversFromPanic(t *testing.T) {
	f := newFixture(t, nil)
	f.ai.panicOn = "describe"
	f.ledger.Open("user-1", 1)
	job := Generation{ID: "job-1", UserID: "user-1", AspectRatio: "1:1", Status: StatusPending}
	require.NoError(t, f.repo.Create(t.Context(), job))

	f.svc.Run(t.Context(), job, pngBytes, "loft", "1:1")

	stored, err := f.repo.GetByID(t.Context(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, stored.Status)
	assert.Contains(t, stored.ErrorMessage, "provider exploded")
	assertProgressShape(t, f.push.forJob(job.ID))
}

func TestPartialSynthesisStillCompletes(t *testing.T) {
	f := newFixture(t, nil)
	f.ai.images = []string{"only-1", "only-2"}
	f.ledger.Open("user-1", 1)

	stored := f.createAndWait(t, "user-1")

	assert.Equal(t, StatusCompleted, stored.Status)
	assert.Equal(t, []string{"only-1", "only-2"}, stored.Images)
	acc, _ := f.ledger.Get("user-1")
	assert.Equal(t, 0, acc.ImagesRemaining)
	assert.Equal(t, 4, acc.TotalImagesProcessed)
}

func TestZeroImageCompletionCarriesEmptyList(t *testing.T) {
	f := newFixture(t, nil)
	f.ai.images = nil
	f.ledger.Open("user-1", 1)

	stored := f.createAndWait(t, "user-1")
	require.Equal(t, StatusCompleted, stored.Status)

	events := f.push.forJob(stored.ID)
	require.NotEmpty(t, events)
	last, err := json.Marshal(events[len(events)-1])
	require.NoError(t, err)
	assert.Contains(t, string(last), `"images":[]`)

	record, err := json.Marshal(stored)
	require.NoError(t, err)
	assert.Contains(t, string(record), `"images":[]`)

	ev, err := f.svc.StatusEvent(t.Context(), "user-1", stored.ID)
	require.NoError(t, err)
	assert.NotNil(t, ev.Images)
	assert.Empty(t, ev.Images)
}

// Provider-level behavior end to end: the description call times out and
// half of the image calls fail.
func TestPipelineWithDegradedProvider(t *testing.T) {
	var imageCalls atomic.Int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/chat/completions":
			select {
			case <-release:
			case <-r.Context().Done():
			}
		case "/images/generations":
			if imageCalls.Add(1)%2 == 0 {
				http.Error(w, "overloaded", http.StatusServiceUnavailable)
				return
			}
			_, _ = w.Write([]byte(`{"data":[{"url":"https://cdn.test/out.png"}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()
	defer close(release)

	client, err := openrouter.NewClient(openrouter.Config{
		APIKey:      "k",
		BaseURL:     srv.URL,
		PromptModel: "p",
		ImageModel:  "i",
		Timeout:     100 * time.Millisecond,
		Concurrency: 1,
	})
	require.NoError(t, err)
	f := newFixture(t, client)
	f.ledger.Open("user-1", 1)

	stored := f.createAndWait(t, "user-1")

	assert.Equal(t, StatusCompleted, stored.Status)
	assert.Len(t, stored.Images, 2)
	assert.True(t, strings.HasPrefix(stored.PromptUsed, "Product: "+ai.DescribeFallback))
	events := f.push.forJob(stored.ID)
	assertProgressShape(t, events)
	assert.Equal(t, StatusGeneratingPrompt, events[2].Status)
}

func TestStatusEventReflectsPersistedState(t *testing.T) {
	f := newFixture(t, nil)
	f.ledger.Open("user-1", 1)
	stored := f.createAndWait(t, "user-1")

	ev, err := f.svc.StatusEvent(t.Context(), "user-1", stored.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, ev.Status)
	assert.Equal(t, 100, ev.Progress)
	assert.Equal(t, stored.Images, ev.Images)

	_, err = f.svc.StatusEvent(t.Context(), "someone-else", stored.ID)
	assert.ErrorIs(t, err, realtime.ErrJobNotFound)
}

func TestTerminalRecordsAreImmutable(t *testing.T) {
	f := newFixture(t, nil)
	f.ledger.Open("user-1", 1)
	stored := f.createAndWait(t, "user-1")

	assert.ErrorIs(t, f.repo.SetStage(t.Context(), stored.ID, StatusAnalyzing, 30), ErrTerminal)
	assert.ErrorIs(t, f.repo.MarkFailed(t.Context(), stored.ID, "late"), ErrTerminal)
	assert.ErrorIs(t, f.repo.Complete(t.Context(), stored.ID, "user-1", "p", nil, 4), ErrTerminal)
}

func TestSanitizeErrorKeepsValidUTF8(t *testing.T) {
	long := strings.Repeat("ошибка ", 100)
	msg := sanitizeError(errors.New(long))

	assert.LessOrEqual(t, len(msg), 500)
	assert.True(t, utf8.ValidString(msg))
	assert.True(t, strings.HasPrefix(long, msg))

	assert.True(t, utf8.ValidString(sanitizeError(errors.New("bad \xff byte\nnext"))))
	assert.Equal(t, "bad  byte next", sanitizeError(errors.New("bad \xff byte\nnext")))
}

func TestBuildPrompt(t *testing.T) {
	got := BuildPrompt(" a mug ", "loft", "no text")
	assert.Equal(t, "Product: a mug\nStyle: loft\nno text", got)
	assert.Equal(t, "Product: a mug\nStyle: loft", BuildPrompt("a mug", "loft", ""))
}

func TestTaskSetRecoversPanics(t *testing.T) {
	tasks := NewTaskSet()
	var ran atomic.Bool
	tasks.Go("boom", func() { panic("boom") })
	tasks.Go("ok", func() { ran.Store(true) })
	require.NoError(t, tasks.Wait(t.Context()))
	assert.True(t, ran.Load())
}

func TestTaskSetWaitHonorsContext(t *testing.T) {
	tasks := NewTaskSet()
	block := make(chan struct{})
	defer close(block)
	tasks.Go("slow", func() { <-block })

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, tasks.Wait(ctx), context.DeadlineExceeded)
}
