package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

var (
	_ Recorder = (*NoopRecorder)(nil)
	_ Recorder = (*InMemoryRecorder)(nil)
	_ Recorder = (*PrometheusRecorder)(nil)
)

func TestInMemoryRecorder_Snapshot(t *testing.T) {
	t.Parallel()

	m := NewInMemory()
	m.IncUserCreated(UserKindRegular)
	m.IncUserCreated(UserKindRegular)
	m.IncUserCreated(UserKindSuperuser)
	m.IncAuthFailure("invalid_token")
	m.IncRecipeCreated()
	m.IncRecipeUpdated(UpdateModePartial)
	m.IncRecipeDeleted()
	m.IncImageUpload(UploadStatusInvalid)
	m.ObserveRecipeListDuration(2 * time.Millisecond)

	snap := m.Snapshot()
	if snap.UsersCreated[UserKindRegular] != 2 || snap.UsersCreated[UserKindSuperuser] != 1 {
		t.Errorf("UsersCreated = %v", snap.UsersCreated)
	}
	if snap.AuthFailures["invalid_token"] != 1 {
		t.Errorf("AuthFailures = %v", snap.AuthFailures)
	}
	if snap.RecipesCreated != 1 || snap.RecipesDeleted != 1 {
		t.Errorf("RecipesCreated=%d RecipesDeleted=%d", snap.RecipesCreated, snap.RecipesDeleted)
	}
	if snap.RecipesUpdated[UpdateModePartial] != 1 {
		t.Errorf("RecipesUpdated = %v", snap.RecipesUpdated)
	}
	if snap.ImageUploads[UploadStatusInvalid] != 1 {
		t.Errorf("ImageUploads = %v", snap.ImageUploads)
	}
	if snap.RecipeListCount != 1 || snap.RecipeListDurationTotal != int64(2*time.Millisecond) {
		t.Errorf("RecipeList count=%d total=%d", snap.RecipeListCount, snap.RecipeListDurationTotal)
	}

	// Snapshot maps are copies.
	snap.UsersCreated[UserKindRegular] = 100
	if m.Snapshot().UsersCreated[UserKindRegular] != 2 {
		t.Error("mutating a snapshot changed the recorder")
	}
}

func TestPrometheusRecorder_Counters(t *testing.T) {
	t.Parallel()

	p := NewPrometheus()
	p.IncRecipeCreated()
	p.IncRecipeCreated()
	p.IncRecipeUpdated(UpdateModeFull)
	p.IncImageUpload(UploadStatusSuccess)

	if got := testutil.ToFloat64(p.recipesCreated); got != 2 {
		t.Errorf("recipes_created_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(p.recipesUpdated.WithLabelValues(UpdateModeFull)); got != 1 {
		t.Errorf("recipes_updated_total{mode=full} = %v, want 1", got)
	}
}

func TestPrometheusRecorder_Handler(t *testing.T) {
	t.Parallel()

	p := NewPrometheus()
	p.IncUserCreated(UserKindRegular)
	p.ObserveRecipeListDuration(10 * time.Millisecond)

	rec := httptest.NewRecorder()
	p.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{
		`recipebook_users_created_total{kind="user"} 1`,
		"recipebook_recipe_list_duration_seconds_count 1",
		"go_goroutines",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("exposition missing %q", want)
		}
	}
}
