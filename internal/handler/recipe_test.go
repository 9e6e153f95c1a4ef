package handler

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/recipebook/recipebook/internal/handler/dto"
	"github.com/recipebook/recipebook/internal/model"
	"github.com/recipebook/recipebook/internal/service"
)

func (e *apiEnv) recipe(t *testing.T, userID int64, title string, tagIDs, ingredientIDs []int64) *model.Recipe {
	t.Helper()
	r, err := e.recipes.CreateRecipe(context.Background(), userID, service.RecipeInput{
		Title:         title,
		TimeMinutes:   10,
		Price:         decimal.RequireFromString("5.00"),
		Link:          "https://example.com/" + title,
		TagIDs:        tagIDs,
		IngredientIDs: ingredientIDs,
	})
	if err != nil {
		t.Fatalf("CreateRecipe(%q): %v", title, err)
	}
	return r
}

func recipePath(id int64, suffix string) string {
	return fmt.Sprintf("/api/v1/recipes/%d%s", id, suffix)
}

func recipeIDs(list []dto.RecipeResponse) []int64 {
	ids := make([]int64, len(list))
	for i, r := range list {
		ids[i] = r.ID
	}
	return ids
}

func equalIDs(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestCreateRecipe_Handler(t *testing.T) {
	e := newAPIEnv(t)
	token, user := e.login(t, "cook@example.com")

	vegan := e.item(t, model.KindTag, user.ID, "Vegan")
	lemon := e.item(t, model.KindIngredient, user.ID, "Lemon")

	rec := e.do(t, http.MethodPost, "/api/v1/recipes", token, map[string]any{
		"title":        "Lemon sorbet",
		"time_minutes": 30,
		"price":        "5.5",
		"tags":         []int64{vegan.ID},
		"ingredients":  []int64{lemon.ID},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	got := decodeBody[dto.RecipeDetailResponse](t, rec)
	if got.Title != "Lemon sorbet" || got.TimeMinutes != 30 || got.Price != "5.50" {
		t.Errorf("unexpected recipe %+v", got)
	}
	if got.Image != nil {
		t.Errorf("image = %v, want null", *got.Image)
	}
	if len(got.Tags) != 1 || got.Tags[0].Name != "Vegan" {
		t.Errorf("tags = %+v", got.Tags)
	}
	if len(got.Ingredients) != 1 || got.Ingredients[0].Name != "Lemon" {
		t.Errorf("ingredients = %+v", got.Ingredients)
	}

	stored, err := e.store.GetRecipe(context.Background(), got.ID, user.ID)
	if err != nil {
		t.Fatalf("GetRecipe: %v", err)
	}
	if stored.UserID != user.ID {
		t.Errorf("owner = %d, want %d", stored.UserID, user.ID)
	}
}

func TestCreateRecipe_Handler_Rejections(t *testing.T) {
	e := newAPIEnv(t)
	token, _ := e.login(t, "cook@example.com")

	tests := []struct {
		name       string
		body       map[string]any
		wantStatus int
		wantCode   string
		wantFields []string
	}{
		{
			name:       "missing required fields",
			body:       map[string]any{"link": "https://example.com"},
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_ERROR",
			wantFields: []string{"title", "time_minutes", "price"},
		},
		{
			name:       "price out of range",
			body:       map[string]any{"title": "Gold", "time_minutes": 1, "price": "1000.00"},
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_ERROR",
			wantFields: []string{"price"},
		},
		{
			name:       "negative time",
			body:       map[string]any{"title": "Time travel", "time_minutes": -5, "price": "1"},
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_ERROR",
			wantFields: []string{"time_minutes"},
		},
		{
			name:       "unknown tag",
			body:       map[string]any{"title": "Ghost", "time_minutes": 1, "price": "1", "tags": []int64{999999}},
			wantStatus: http.StatusNotFound,
			wantCode:   "NOT_FOUND",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := e.do(t, http.MethodPost, "/api/v1/recipes", token, tt.body)
			resp := expectError(t, rec, tt.wantStatus, tt.wantCode)
			for _, f := range tt.wantFields {
				if _, ok := resp.Fields[f]; !ok {
					t.Errorf("fields = %v, want %q", resp.Fields, f)
				}
			}
		})
	}

	rec := e.do(t, http.MethodGet, "/api/v1/recipes", token, nil)
	if list := decodeBody[[]dto.RecipeResponse](t, rec); len(list) != 0 {
		t.Errorf("rejected creates stored %d recipes", len(list))
	}
}

func TestListRecipes_Handler(t *testing.T) {
	e := newAPIEnv(t)
	token, user := e.login(t, "cook@example.com")
	_, other := e.login(t, "other@example.com")

	vegan := e.item(t, model.KindTag, user.ID, "Vegan")
	vegetarian := e.item(t, model.KindTag, user.ID, "Vegetarian")
	feta := e.item(t, model.KindIngredient, user.ID, "Feta")

	r1 := e.recipe(t, user.ID, "Thai curry", []int64{vegan.ID}, nil)
	r2 := e.recipe(t, user.ID, "Aubergine tahini", []int64{vegetarian.ID}, []int64{feta.ID})
	r3 := e.recipe(t, user.ID, "Fish and chips", nil, nil)
	e.recipe(t, other.ID, "Not mine", []int64{vegan.ID}, nil)

	tests := []struct {
		query string
		want  []int64
	}{
		{"", []int64{r3.ID, r2.ID, r1.ID}},
		{fmt.Sprintf("?tags=%d,%d", vegan.ID, vegetarian.ID), []int64{r2.ID, r1.ID}},
		{fmt.Sprintf("?tags=%d", vegan.ID), []int64{r1.ID}},
		{fmt.Sprintf("?ingredients=%d", feta.ID), []int64{r2.ID}},
		{fmt.Sprintf("?tags=%d&ingredients=%d", vegan.ID, feta.ID), []int64{}},
		{fmt.Sprintf("?tags=%%20%d%%20,,", vegetarian.ID), []int64{r2.ID}},
	}

	for _, tt := range tests {
		t.Run("query"+tt.query, func(t *testing.T) {
			rec := e.do(t, http.MethodGet, "/api/v1/recipes"+tt.query, token, nil)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
			}
			got := recipeIDs(decodeBody[[]dto.RecipeResponse](t, rec))
			if !equalIDs(got, tt.want) {
				t.Errorf("ids = %v, want %v", got, tt.want)
			}
		})
	}

	rec := e.do(t, http.MethodGet, "/api/v1/recipes?tags=1,abc", token, nil)
	resp := expectError(t, rec, http.StatusBadRequest, "VALIDATION_ERROR")
	if _, ok := resp.Fields["tags"]; !ok {
		t.Errorf("fields = %v", resp.Fields)
	}
}

func TestListRecipes_Handler_ListShape(t *testing.T) {
	e := newAPIEnv(t)
	token, user := e.login(t, "cook@example.com")
	tag := e.item(t, model.KindTag, user.ID, "Quick")
	r := e.recipe(t, user.ID, "Toast", []int64{tag.ID}, nil)

	rec := e.do(t, http.MethodGet, "/api/v1/recipes/", token, nil)
	list := decodeBody[[]dto.RecipeResponse](t, rec)
	if len(list) != 1 {
		t.Fatalf("len = %d", len(list))
	}
	if list[0].ID != r.ID || !equalIDs(list[0].Tags, []int64{tag.ID}) || list[0].Ingredients == nil {
		t.Errorf("unexpected list entry %+v", list[0])
	}
}

func TestRecipe_OtherUsersAreNotFound(t *testing.T) {
	e := newAPIEnv(t)
	token, _ := e.login(t, "cook@example.com")
	_, other := e.login(t, "other@example.com")
	theirs := e.recipe(t, other.ID, "Secret", nil, nil)

	for _, method := range []string{http.MethodGet, http.MethodPatch, http.MethodDelete} {
		var body any
		if method == http.MethodPatch {
			body = map[string]any{"title": "Stolen"}
		}
		rec := e.do(t, method, recipePath(theirs.ID, ""), token, body)
		expectError(t, rec, http.StatusNotFound, "NOT_FOUND")
	}

	stored, _ := e.store.GetRecipe(context.Background(), theirs.ID, other.ID)
	if stored == nil || stored.Title != "Secret" {
		t.Errorf("other user's recipe changed: %+v", stored)
	}
}

func TestReplaceRecipe_Handler(t *testing.T) {
	e := newAPIEnv(t)
	token, user := e.login(t, "cook@example.com")
	tag := e.item(t, model.KindTag, user.ID, "Dinner")
	r := e.recipe(t, user.ID, "Spaghetti", []int64{tag.ID}, nil)

	rec := e.do(t, http.MethodPut, recipePath(r.ID, ""), token, map[string]any{
		"title":        "Spaghetti carbonara",
		"time_minutes": 25,
		"price":        "5.00",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	got := decodeBody[dto.RecipeDetailResponse](t, rec)
	if got.Title != "Spaghetti carbonara" || got.TimeMinutes != 25 {
		t.Errorf("unexpected recipe %+v", got)
	}
	if got.Link != "" {
		t.Errorf("link = %q, want cleared", got.Link)
	}
	if len(got.Tags) != 0 {
		t.Errorf("tags = %+v, want cleared", got.Tags)
	}
}

func TestPatchRecipe_Handler(t *testing.T) {
	e := newAPIEnv(t)
	token, user := e.login(t, "cook@example.com")
	breakfast := e.item(t, model.KindTag, user.ID, "Breakfast")
	lunch := e.item(t, model.KindTag, user.ID, "Lunch")
	r := e.recipe(t, user.ID, "Sample", []int64{breakfast.ID}, nil)

	rec := e.do(t, http.MethodPatch, recipePath(r.ID, ""), token, map[string]any{"title": "New title"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	got := decodeBody[dto.RecipeDetailResponse](t, rec)
	if got.Title != "New title" || got.Link != r.Link || got.Price != "5.00" {
		t.Errorf("partial update touched other fields: %+v", got)
	}
	if len(got.Tags) != 1 || got.Tags[0].ID != breakfast.ID {
		t.Errorf("tags = %+v, want unchanged", got.Tags)
	}

	rec = e.do(t, http.MethodPatch, recipePath(r.ID, ""), token, map[string]any{"tags": []int64{lunch.ID}})
	got = decodeBody[dto.RecipeDetailResponse](t, rec)
	if len(got.Tags) != 1 || got.Tags[0].ID != lunch.ID {
		t.Errorf("tags = %+v, want [Lunch]", got.Tags)
	}

	rec = e.do(t, http.MethodPatch, recipePath(r.ID, ""), token, map[string]any{"tags": []int64{}})
	got = decodeBody[dto.RecipeDetailResponse](t, rec)
	if len(got.Tags) != 0 {
		t.Errorf("tags = %+v, want cleared", got.Tags)
	}
}

func TestDeleteRecipe_Handler(t *testing.T) {
	e := newAPIEnv(t)
	token, user := e.login(t, "cook@example.com")
	r := e.recipe(t, user.ID, "Short lived", nil, nil)

	rec := e.do(t, http.MethodDelete, recipePath(r.ID, ""), token, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}

	rec = e.do(t, http.MethodGet, recipePath(r.ID, ""), token, nil)
	expectError(t, rec, http.StatusNotFound, "NOT_FOUND")
}

func pngImage(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 10, 10))); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func (e *apiEnv) upload(t *testing.T, path, token, field string, data []byte) *httptest.ResponseRecorder {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile(field, "upload.png")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Token "+token)

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func TestUploadImage_Handler(t *testing.T) {
	e := newAPIEnv(t)
	token, user := e.login(t, "cook@example.com")
	r := e.recipe(t, user.ID, "Photogenic", nil, nil)
	img := pngImage(t)

	rec := e.upload(t, recipePath(r.ID, "/upload-image"), token, "image", img)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	resp := decodeBody[dto.RecipeImageResponse](t, rec)
	if resp.ID != r.ID || resp.Image != dto.ImageURL(testBaseURL, r.ID) {
		t.Errorf("unexpected response %+v", resp)
	}
	if paths := e.images.Paths(fmt.Sprintf("recipes/%d/", r.ID)); len(paths) != 1 {
		t.Errorf("stored images = %v, want one", paths)
	}

	rec = e.do(t, http.MethodGet, recipePath(r.ID, "/image"), token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("image status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %q", ct)
	}
	if !bytes.Equal(rec.Body.Bytes(), img) {
		t.Error("served image differs from upload")
	}

	rec = e.do(t, http.MethodGet, recipePath(r.ID, ""), token, nil)
	if detail := decodeBody[dto.RecipeDetailResponse](t, rec); detail.Image == nil {
		t.Error("detail image is null after upload")
	}
}

func TestUploadImage_Handler_Rejections(t *testing.T) {
	e := newAPIEnv(t)
	token, user := e.login(t, "cook@example.com")
	r := e.recipe(t, user.ID, "Camera shy", nil, nil)

	rec := e.upload(t, recipePath(r.ID, "/upload-image"), token, "image", []byte("notimage"))
	expectError(t, rec, http.StatusBadRequest, "INVALID_IMAGE")

	rec = e.upload(t, recipePath(r.ID, "/upload-image"), token, "photo", pngImage(t))
	resp := expectError(t, rec, http.StatusBadRequest, "VALIDATION_ERROR")
	if _, ok := resp.Fields["image"]; !ok {
		t.Errorf("fields = %v", resp.Fields)
	}

	rec = e.do(t, http.MethodPost, recipePath(r.ID, "/upload-image"), token, map[string]string{"image": "x"})
	expectError(t, rec, http.StatusBadRequest, "INVALID_MULTIPART")

	stored, _ := e.store.GetRecipe(context.Background(), r.ID, user.ID)
	if stored.HasImage() {
		t.Errorf("rejected uploads attached image %q", stored.Image)
	}

	rec = e.do(t, http.MethodGet, recipePath(r.ID, "/image"), token, nil)
	expectError(t, rec, http.StatusNotFound, "NOT_FOUND")
}

func TestUploadImage_Handler_TooLarge(t *testing.T) {
	e := newAPIEnv(t)
	token, user := e.login(t, "cook@example.com")
	r := e.recipe(t, user.ID, "Huge", nil, nil)

	rec := e.upload(t, recipePath(r.ID, "/upload-image"), token, "image", make([]byte, 2<<20))
	expectError(t, rec, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE")
}
