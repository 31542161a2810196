package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"referloop/auth"
	"referloop/config"
	"referloop/listing"
	"referloop/notify"
	"referloop/profile"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(t *testing.T) (*gin.Engine, *fakeListingStore) {
	t.Helper()
	authRepo := &fakeAuthRepo{byEmail: make(map[string]auth.Account), byID: make(map[string]auth.Account)}
	listings := newFakeListingStore()
	server := NewServer(Deps{
		Config:        config.Config{UploadDir: t.TempDir()},
		Auth:          auth.NewService(authRepo, "test-secret"),
		Profiles:      profile.NewService(&fakeProfileStore{byID: make(map[string]profile.Profile)}),
		Listings:      listing.NewService(listings),
		Notifications: notify.NewService(&fakeNotifyStore{}, nil),
	})
	return server.Router(), listings
}

func doJSON(t *testing.T, r *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func registerAndLogin(t *testing.T, r *gin.Engine, email string) string {
	t.Helper()
	w := doJSON(t, r, http.MethodPost, "/api/auth/register", "", gin.H{
		"email": email, "password": "hunter2hunter2", "name": "Test User",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("register: status %d body %s", w.Code, w.Body.String())
	}
	w = doJSON(t, r, http.MethodPost, "/api/auth/login", "", gin.H{
		"email": email, "password": "hunter2hunter2",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("login: status %d body %s", w.Code, w.Body.String())
	}
	var res struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil || res.Token == "" {
		t.Fatalf("login response missing token: %s", w.Body.String())
	}
	return res.Token
}

func TestAuthFlow(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/auth/register", "", gin.H{
		"email": "a@example.com", "password": "short", "name": "A",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("weak password: want 400, got %d", w.Code)
	}

	token := registerAndLogin(t, r, "a@example.com")
	if token == "" {
		t.Fatal("expected token")
	}

	w = doJSON(t, r, http.MethodPost, "/api/auth/register", "", gin.H{
		"email": "a@example.com", "password": "hunter2hunter2", "name": "A",
	})
	if w.Code != http.StatusConflict {
		t.Fatalf("duplicate email: want 409, got %d", w.Code)
	}

	w = doJSON(t, r, http.MethodPost, "/api/auth/login", "", gin.H{
		"email": "a@example.com", "password": "wrong-password",
	})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("bad password: want 401, got %d", w.Code)
	}
}

func TestRequireAuth(t *testing.T) {
	r, _ := newTestRouter(t)

	cases := []struct {
		name   string
		header string
	}{
		{name: "missing header", header: ""},
		{name: "not bearer", header: "Basic abc"},
		{name: "garbage token", header: "Bearer not-a-jwt"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/listings", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != http.StatusUnauthorized {
				t.Fatalf("want 401, got %d", w.Code)
			}
		})
	}

	token := registerAndLogin(t, r, "b@example.com")
	w := doJSON(t, r, http.MethodGet, "/api/listings", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("authed request: want 200, got %d body %s", w.Code, w.Body.String())
	}
}

func TestListingEndpoints(t *testing.T) {
	r, listings := newTestRouter(t)
	owner := registerAndLogin(t, r, "owner@example.com")
	browser := registerAndLogin(t, r, "browser@example.com")

	w := doJSON(t, r, http.MethodPost, "/api/listings", owner, gin.H{
		"type": "ask", "role": "SRE", "target_company": "Initech",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create listing: status %d body %s", w.Code, w.Body.String())
	}
	var created struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil || created.ID == "" {
		t.Fatalf("create response missing id: %s", w.Body.String())
	}

	w = doJSON(t, r, http.MethodPost, "/api/listings", owner, gin.H{"type": "swap"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("invalid type: want 400, got %d", w.Code)
	}

	// The owner's own listing never shows on their explore surface.
	w = doJSON(t, r, http.MethodGet, "/api/listings/explore?type=ask", owner, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("explore: status %d", w.Code)
	}
	var explore struct {
		Listings []json.RawMessage `json:"listings"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &explore); err != nil {
		t.Fatalf("decode explore: %v", err)
	}
	if len(explore.Listings) != 0 {
		t.Fatalf("owner explore must exclude own listing, got %d", len(explore.Listings))
	}

	w = doJSON(t, r, http.MethodGet, "/api/listings/explore?type=ask", browser, nil)
	if err := json.Unmarshal(w.Body.Bytes(), &explore); err != nil {
		t.Fatalf("decode explore: %v", err)
	}
	if len(explore.Listings) != 1 {
		t.Fatalf("browser explore: want 1 listing, got %d", len(explore.Listings))
	}

	// Patching someone else's listing reads as not found.
	w = doJSON(t, r, http.MethodPatch, "/api/listings/"+created.ID, browser, gin.H{"role": "CTO"})
	if w.Code != http.StatusNotFound {
		t.Fatalf("foreign patch: want 404, got %d", w.Code)
	}
	w = doJSON(t, r, http.MethodPatch, "/api/listings/"+created.ID, owner, gin.H{"role": "CTO"})
	if w.Code != http.StatusOK {
		t.Fatalf("owner patch: status %d body %s", w.Code, w.Body.String())
	}

	// A listing backing a live match refuses deletion with a conflict.
	listings.inUse = map[string]bool{created.ID: true}
	w = doJSON(t, r, http.MethodDelete, "/api/listings/"+created.ID, owner, nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("delete referenced listing: want 409, got %d", w.Code)
	}
	listings.inUse = nil

	w = doJSON(t, r, http.MethodDelete, "/api/listings/"+created.ID, owner, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete: want 204, got %d", w.Code)
	}
}

func TestHealthz(t *testing.T) {
	r, _ := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", w.Code)
	}
}

// fakes

type fakeAuthRepo struct {
	byEmail map[string]auth.Account
	byID    map[string]auth.Account
	seq     int
}

func (f *fakeAuthRepo) CreateAccount(_ context.Context, p auth.CreateAccountParams) (auth.Account, error) {
	if _, ok := f.byEmail[p.Email]; ok {
		return auth.Account{}, auth.ErrDuplicateEmail
	}
	f.seq++
	name := p.Name
	a := auth.Account{ID: fmt.Sprintf("profile-%d", f.seq), Email: p.Email, Name: &name, PasswordHash: p.PasswordHash}
	f.byEmail[a.Email] = a
	f.byID[a.ID] = a
	return a, nil
}

func (f *fakeAuthRepo) GetAccountByEmail(_ context.Context, email string) (auth.Account, error) {
	a, ok := f.byEmail[email]
	if !ok {
		return auth.Account{}, auth.ErrAccountNotFound
	}
	return a, nil
}

func (f *fakeAuthRepo) GetAccountByID(_ context.Context, id string) (auth.Account, error) {
	a, ok := f.byID[id]
	if !ok {
		return auth.Account{}, auth.ErrAccountNotFound
	}
	return a, nil
}

type fakeProfileStore struct {
	byID map[string]profile.Profile
}

func (f *fakeProfileStore) UpsertByEmail(_ context.Context, email string, name, image *string) (profile.Profile, error) {
	p := profile.Profile{ID: "profile-" + email, Email: email, Name: name, Image: image, CompletionRate: 100}
	f.byID[p.ID] = p
	return p, nil
}

func (f *fakeProfileStore) GetByEmail(_ context.Context, email string) (profile.Profile, error) {
	for _, p := range f.byID {
		if p.Email == email {
			return p, nil
		}
	}
	return profile.Profile{}, profile.ErrNotFound
}

func (f *fakeProfileStore) GetByID(_ context.Context, id string) (profile.Profile, error) {
	p, ok := f.byID[id]
	if !ok {
		return profile.Profile{}, profile.ErrNotFound
	}
	return p, nil
}

func (f *fakeProfileStore) UpdateName(_ context.Context, id, name string) (profile.Profile, error) {
	p, ok := f.byID[id]
	if !ok {
		return profile.Profile{}, profile.ErrNotFound
	}
	p.Name = &name
	f.byID[id] = p
	return p, nil
}

type fakeListingStore struct {
	listings map[string]listing.Listing
	inUse    map[string]bool
	seq      int
}

func newFakeListingStore() *fakeListingStore {
	return &fakeListingStore{listings: make(map[string]listing.Listing)}
}

func (f *fakeListingStore) Create(_ context.Context, l listing.Listing) (listing.Listing, error) {
	f.seq++
	l.ID = fmt.Sprintf("l-%d", f.seq)
	f.listings[l.ID] = l
	return l, nil
}

func (f *fakeListingStore) GetByID(_ context.Context, id string) (listing.Listing, error) {
	l, ok := f.listings[id]
	if !ok {
		return listing.Listing{}, listing.ErrNotFound
	}
	return l, nil
}

func (f *fakeListingStore) ListMine(_ context.Context, profileID string) ([]listing.Listing, error) {
	var out []listing.Listing
	for _, l := range f.listings {
		if l.ProfileID == profileID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeListingStore) ListPublic(_ context.Context, flt listing.PublicFilters) ([]listing.Listing, error) {
	var out []listing.Listing
	for _, l := range f.listings {
		if !l.Active || l.ProfileID == flt.ExcludeProfileID {
			continue
		}
		if flt.Type != "" && l.Type != flt.Type {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

func (f *fakeListingStore) UpdateOwned(_ context.Context, id, profileID string, p listing.Patch) (listing.Listing, error) {
	l, ok := f.listings[id]
	if !ok || l.ProfileID != profileID {
		return listing.Listing{}, listing.ErrNotFound
	}
	if p.Role != nil {
		l.Role = p.Role
	}
	f.listings[id] = l
	return l, nil
}

func (f *fakeListingStore) DeleteOwned(_ context.Context, id, profileID string) error {
	l, ok := f.listings[id]
	if !ok || l.ProfileID != profileID {
		return listing.ErrNotFound
	}
	if f.inUse[id] {
		return listing.ErrInUse
	}
	delete(f.listings, id)
	return nil
}

type fakeNotifyStore struct{}

func (f *fakeNotifyStore) Insert(_ context.Context, profileID string, kind notify.Kind, refID *string) (notify.Notification, error) {
	return notify.Notification{ID: "n-1", ProfileID: profileID, Kind: kind, RefID: refID}, nil
}

func (f *fakeNotifyStore) ListForProfile(context.Context, string, int) ([]notify.Notification, error) {
	return nil, nil
}

func (f *fakeNotifyStore) MarkRead(context.Context, string, string) error { return nil }

func (f *fakeNotifyStore) MarkAllRead(context.Context, string) error { return nil }
