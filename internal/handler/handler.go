package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/dpetrov/speedrun-tracker/internal/gate"
	"github.com/dpetrov/speedrun-tracker/internal/infrastructure/auth"
	"github.com/dpetrov/speedrun-tracker/internal/models"
	"github.com/dpetrov/speedrun-tracker/internal/ranking"
	service "github.com/dpetrov/speedrun-tracker/internal/services"
	pkgerrors "github.com/dpetrov/speedrun-tracker/pkg/errors"
	"github.com/gorilla/mux"
)

// Response codes used by every endpoint.
const (
	CodeSuccess = 0
	CodeError   = 1
	CodeUnknown = 2
	CodeNoAuth  = 3
)

type envelope struct {
	Data interface{} `json:"data"`
	Msg  string      `json:"msg"`
	Code int         `json:"code"`
}

type Handler struct {
	service      service.SpeedrunService
	tokens       *auth.TokenManager
	cookieSecure bool
}

func NewHandler(s service.SpeedrunService, tokens *auth.TokenManager, cookieSecure bool) *Handler {
	return &Handler{service: s, tokens: tokens, cookieSecure: cookieSecure}
}

func (h *Handler) RegisterPublicRoutes(r *mux.Router) {
	r.HandleFunc("/auth/register", h.Register).Methods("POST")
	r.HandleFunc("/auth/login", h.Login).Methods("POST")
	r.HandleFunc("/auth/logout", h.Logout).Methods("GET")
	r.HandleFunc("/auth/sessions/verify", h.VerifySession).Methods("GET")
	r.HandleFunc("/loadGames", h.LoadGames).Methods("GET")
	r.HandleFunc("/loadSpeedruns", h.LoadSpeedruns).Methods("GET")
	r.HandleFunc("/loadSearch", h.LoadSearch).Methods("POST")
	r.HandleFunc("/loadFilters", h.LoadFilters).Methods("POST")
	r.HandleFunc("/speedrun", h.Speedrun).Methods("POST")
}

func (h *Handler) RegisterProtectedRoutes(r *mux.Router) {
	r.HandleFunc("/addGame", h.AddGame).Methods("POST")
	r.HandleFunc("/submitSpeedrun", h.SubmitSpeedrun).Methods("POST")
	r.HandleFunc("/mySubmissions", h.MySubmissions).Methods("POST")
	r.HandleFunc("/submissions", h.Submissions).Methods("POST")
	r.HandleFunc("/manage", h.Manage).Methods("POST")
	r.HandleFunc("/delete", h.Delete).Methods("POST")
	r.HandleFunc("/moderationLog", h.ModerationLog).Methods("POST")
}

func (h *Handler) write(w http.ResponseWriter, status int, resp envelope) {
	if resp.Data == nil {
		resp.Data = struct{}{}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

func (h *Handler) success(w http.ResponseWriter, data interface{}, msg string) {
	h.write(w, http.StatusOK, envelope{Data: data, Msg: msg, Code: CodeSuccess})
}

// displayMessages maps domain sentinels to the wording the frontend
// shows users. Anything not listed is an internal failure and is
// reported uniformly as "Unknown error" without leaking details.
var displayMessages = []struct {
	err error
	msg string
}{
	{pkgerrors.ErrPasswordMismatch, "Passwords do not match."},
	{pkgerrors.ErrUsernameTooShort, "Username must be at least 5 characters long."},
	{pkgerrors.ErrPasswordTooShort, "Password must be at least 10 characters long."},
	{pkgerrors.ErrUsernameExists, "Username is taken."},
	{pkgerrors.ErrUserNotFound, "There is no such user."},
	{pkgerrors.ErrInvalidCredentials, "Invalid password."},
	{pkgerrors.ErrGameExists, "Game already exists"},
	{pkgerrors.ErrDailyLimit, "You already have uploaded a submission today. Wait for tomorrow to apply for a new one."},
	{pkgerrors.ErrNameLength, "Speedrun name must be between 10 and 50 characters long. Try putting a new one."},
	{pkgerrors.ErrNameExists, "Speedrun name already exists. Try putting a new one."},
	{pkgerrors.ErrURLExists, "Speedrun URL already exists."},
	{pkgerrors.ErrUnknownGame, "Invalid game. If you want this game to be added then contact an admin."},
	{pkgerrors.ErrInvalidURL, "URL is invalid (needs to start with 'https://' and be valid)"},
	{pkgerrors.ErrSubmissionNotFound, "Submission not found."},
}

func (h *Handler) writeErr(w http.ResponseWriter, err error) {
	for _, entry := range displayMessages {
		if errors.Is(err, entry.err) {
			h.write(w, http.StatusOK, envelope{Data: struct{}{}, Msg: entry.msg, Code: CodeError})
			return
		}
	}
	slog.Error("request failed", "error", err)
	h.write(w, http.StatusInternalServerError, envelope{Data: struct{}{}, Msg: "Unknown error", Code: CodeUnknown})
}

func (h *Handler) notAuthenticated(w http.ResponseWriter) {
	h.write(w, http.StatusOK, envelope{Data: struct{}{}, Msg: "Not authenticated", Code: CodeNoAuth})
}

// sessionUser resolves the authenticated user behind the verified
// claim. The admin flag and the author identity always come from the
// session, never from the request body.
func (h *Handler) sessionUser(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		h.notAuthenticated(w)
		return nil, false
	}
	user, err := h.service.VerifySession(r.Context(), claims.UserID)
	if err != nil {
		h.notAuthenticated(w)
		return nil, false
	}
	return user, true
}

func (h *Handler) adminUser(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	user, ok := h.sessionUser(w, r)
	if !ok {
		return nil, false
	}
	if !user.IsAdmin {
		h.notAuthenticated(w)
		return nil, false
	}
	return user, true
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username        string `json:"username"`
		Password        string `json:"password"`
		ConfirmPassword string `json:"confirmPassword"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.write(w, http.StatusOK, envelope{Data: struct{}{}, Msg: "Bad request", Code: CodeError})
		return
	}

	if err := h.service.Register(r.Context(), req.Username, req.Password, req.ConfirmPassword); err != nil {
		h.writeErr(w, err)
		return
	}
	h.success(w, nil, "Success")
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.write(w, http.StatusOK, envelope{Data: struct{}{}, Msg: "Bad request", Code: CodeError})
		return
	}

	token, err := h.service.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		h.writeErr(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(auth.SessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.cookieSecure,
	})
	h.success(w, nil, "Success")
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(auth.CookieName); err == nil && cookie.Value != "" {
		if claims, err := h.tokens.Verify(cookie.Value); err == nil {
			if err := h.service.Logout(r.Context(), claims.UserID); err != nil {
				slog.Error("failed to revoke session", "user_id", claims.UserID, "error", err)
			}
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookieSecure,
	})
	h.success(w, nil, "Success")
}

func (h *Handler) VerifySession(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(auth.CookieName)
	if err != nil || cookie.Value == "" {
		h.write(w, http.StatusOK, envelope{Data: struct{}{}, Msg: "User is not logged in", Code: CodeError})
		return
	}

	claims, err := h.tokens.Verify(cookie.Value)
	if err != nil {
		h.write(w, http.StatusOK, envelope{Data: struct{}{}, Msg: "User is not logged in", Code: CodeError})
		return
	}

	user, err := h.service.VerifySession(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, pkgerrors.ErrUserNotFound) {
			h.write(w, http.StatusOK, envelope{Data: struct{}{}, Msg: "No account found", Code: CodeError})
			return
		}
		h.writeErr(w, err)
		return
	}
	h.success(w, map[string]interface{}{"User": user}, "Success")
}

func (h *Handler) AddGame(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.adminUser(w, r); !ok {
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.write(w, http.StatusOK, envelope{Data: struct{}{}, Msg: "Bad request", Code: CodeError})
		return
	}

	if _, err := h.service.AddGame(r.Context(), req.Name); err != nil {
		h.writeErr(w, err)
		return
	}
	h.success(w, nil, "Game added successfully")
}

func (h *Handler) LoadGames(w http.ResponseWriter, r *http.Request) {
	games, err := h.service.ListGames(r.Context())
	if err != nil {
		h.writeErr(w, err)
		return
	}
	if games == nil {
		games = []models.Game{}
	}
	h.success(w, map[string]interface{}{"games": games}, "Success")
}

func (h *Handler) SubmitSpeedrun(w http.ResponseWriter, r *http.Request) {
	user, ok := h.sessionUser(w, r)
	if !ok {
		return
	}

	var req struct {
		Name    string `json:"name"`
		Game    string `json:"game"`
		URL     string `json:"url"`
		Checked bool   `json:"checked"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.write(w, http.StatusOK, envelope{Data: struct{}{}, Msg: "Bad request", Code: CodeError})
		return
	}

	bugs := "No"
	if req.Checked {
		bugs = "Yes"
	}

	_, err := h.service.Submit(r.Context(), gate.Proposal{
		Name:          req.Name,
		Game:          req.Game,
		URL:           req.URL,
		Bugs:          bugs,
		Author:        user.Username,
		AuthorIsAdmin: user.IsAdmin,
	})
	if err != nil {
		h.writeErr(w, err)
		return
	}
	h.success(w, nil, "Your upload is successful and will be public as soon as it gets approved. Visit your submissions panel to check the status of your submission.")
}

func (h *Handler) LoadSpeedruns(w http.ResponseWriter, r *http.Request) {
	speedruns, err := h.service.ApprovedSpeedruns(r.Context())
	if err != nil {
		h.writeErr(w, err)
		return
	}
	if speedruns == nil {
		speedruns = []models.Submission{}
	}
	h.success(w, map[string]interface{}{"speedruns": speedruns}, "Success")
}

func (h *Handler) LoadSearch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Speedruns []models.Submission `json:"speedruns"`
		Input     string              `json:"input"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.write(w, http.StatusOK, envelope{Data: struct{}{}, Msg: "Bad request", Code: CodeError})
		return
	}

	newSpeedruns := ranking.Search(req.Speedruns, req.Input)
	h.success(w, map[string]interface{}{"newSpeedruns": newSpeedruns}, "Success")
}

func (h *Handler) LoadFilters(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Speedruns []models.Submission `json:"speedruns"`
		Type      string              `json:"type"`
		Value     string              `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.write(w, http.StatusOK, envelope{Data: struct{}{}, Msg: "Bad request", Code: CodeError})
		return
	}

	newSpeedruns, err := ranking.Apply(req.Speedruns, ranking.Filter{Field: req.Type, Value: req.Value})
	if err != nil {
		h.writeErr(w, err)
		return
	}
	h.success(w, map[string]interface{}{"newSpeedruns": newSpeedruns}, "Success")
}

func (h *Handler) Speedrun(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.write(w, http.StatusOK, envelope{Data: struct{}{}, Msg: "Bad request", Code: CodeError})
		return
	}

	speedrun, err := h.service.SpeedrunByPageURL(r.Context(), req.URL)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	h.success(w, map[string]interface{}{"speedrun": speedrun}, "Success")
}

func (h *Handler) MySubmissions(w http.ResponseWriter, r *http.Request) {
	user, ok := h.sessionUser(w, r)
	if !ok {
		return
	}

	speedruns, err := h.service.SubmissionsByAuthor(r.Context(), user.Username)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	if speedruns == nil {
		speedruns = []models.Submission{}
	}
	h.success(w, map[string]interface{}{"speedruns": speedruns}, "Success")
}

func (h *Handler) Submissions(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.adminUser(w, r); !ok {
		return
	}

	speedruns, err := h.service.AwaitingSubmissions(r.Context())
	if err != nil {
		h.writeErr(w, err)
		return
	}
	if speedruns == nil {
		speedruns = []models.Submission{}
	}
	h.success(w, map[string]interface{}{"speedruns": speedruns}, "Success")
}

func (h *Handler) Manage(w http.ResponseWriter, r *http.Request) {
	admin, ok := h.adminUser(w, r)
	if !ok {
		return
	}

	var req struct {
		ID     int32  `json:"id"`
		Option string `json:"option"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.write(w, http.StatusOK, envelope{Data: struct{}{}, Msg: "Bad request", Code: CodeError})
		return
	}

	if err := h.service.Manage(r.Context(), admin.Username, req.ID, req.Option == "Yes"); err != nil {
		h.writeErr(w, err)
		return
	}
	h.success(w, nil, "Success")
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	admin, ok := h.adminUser(w, r)
	if !ok {
		return
	}

	var req struct {
		ID int32 `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.write(w, http.StatusOK, envelope{Data: struct{}{}, Msg: "Bad request", Code: CodeError})
		return
	}

	if err := h.service.Delete(r.Context(), admin.Username, req.ID); err != nil {
		h.writeErr(w, err)
		return
	}
	h.success(w, nil, "Success. Speedrun deleted.")
}

// ModerationLog returns the audit trail the event consumer has
// recorded for a submission.
func (h *Handler) ModerationLog(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.adminUser(w, r); !ok {
		return
	}

	var req struct {
		ID int32 `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.write(w, http.StatusOK, envelope{Data: struct{}{}, Msg: "Bad request", Code: CodeError})
		return
	}

	entries, err := h.service.ModerationTrail(r.Context(), req.ID)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	if entries == nil {
		entries = []models.ModerationEntry{}
	}
	h.success(w, map[string]interface{}{"entries": entries}, "Success")
}
