package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	UsersCreated            map[string]uint64
	AuthFailures            map[string]uint64
	RecipesCreated          uint64
	RecipesUpdated          map[string]uint64
	RecipesDeleted          uint64
	ImageUploads            map[string]uint64
	RecipeListCount         uint64
	RecipeListDurationTotal int64
}

// InMemoryRecorder stores metrics in memory for tests.
type InMemoryRecorder struct {
	recipesCreated          uint64
	recipesDeleted          uint64
	recipeListCount         uint64
	recipeListDurationTotal int64

	mu             sync.Mutex
	usersCreated   map[string]uint64
	authFailures   map[string]uint64
	recipesUpdated map[string]uint64
	imageUploads   map[string]uint64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{
		usersCreated:   make(map[string]uint64),
		authFailures:   make(map[string]uint64),
		recipesUpdated: make(map[string]uint64),
		imageUploads:   make(map[string]uint64),
	}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Snapshot{
		UsersCreated:            copyCounts(m.usersCreated),
		AuthFailures:            copyCounts(m.authFailures),
		RecipesCreated:          atomic.LoadUint64(&m.recipesCreated),
		RecipesUpdated:          copyCounts(m.recipesUpdated),
		RecipesDeleted:          atomic.LoadUint64(&m.recipesDeleted),
		ImageUploads:            copyCounts(m.imageUploads),
		RecipeListCount:         atomic.LoadUint64(&m.recipeListCount),
		RecipeListDurationTotal: atomic.LoadInt64(&m.recipeListDurationTotal),
	}
}

// IncUserCreated increments the users created counter for kind.
func (m *InMemoryRecorder) IncUserCreated(kind string) {
	m.inc(m.usersCreated, kind)
}

// IncAuthFailure increments the auth failure counter for reason.
func (m *InMemoryRecorder) IncAuthFailure(reason string) {
	m.inc(m.authFailures, reason)
}

// IncRecipeCreated increments recipe created counter.
func (m *InMemoryRecorder) IncRecipeCreated() {
	atomic.AddUint64(&m.recipesCreated, 1)
}

// IncRecipeUpdated increments the recipe updated counter for mode.
func (m *InMemoryRecorder) IncRecipeUpdated(mode string) {
	m.inc(m.recipesUpdated, mode)
}

// IncRecipeDeleted increments recipe deleted counter.
func (m *InMemoryRecorder) IncRecipeDeleted() {
	atomic.AddUint64(&m.recipesDeleted, 1)
}

// IncImageUpload increments the image upload counter for status.
func (m *InMemoryRecorder) IncImageUpload(status string) {
	m.inc(m.imageUploads, status)
}

// ObserveRecipeListDuration records recipe list duration.
func (m *InMemoryRecorder) ObserveRecipeListDuration(duration time.Duration) {
	atomic.AddUint64(&m.recipeListCount, 1)
	atomic.AddInt64(&m.recipeListDurationTotal, duration.Nanoseconds())
}

func (m *InMemoryRecorder) inc(counts map[string]uint64, label string) {
	m.mu.Lock()
	counts[label]++
	m.mu.Unlock()
}

func copyCounts(src map[string]uint64) map[string]uint64 {
	dst := make(map[string]uint64, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
