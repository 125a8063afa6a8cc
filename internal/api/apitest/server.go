// Package apitest runs an in-process fake of the complaint management backend.
// It enforces the same scoping, role and transition rules as the real service
// so client behavior can be tested end to end without a network.
package apitest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ResetCode is the one-time code the fake issues for every reset request.
const ResetCode = "123456"

var transitions = map[string][]string{
	"Pending":     {"In Progress", "Rejected"},
	"In Progress": {"Resolved"},
}

// User is an account known to the fake backend.
type User struct {
	ID       int
	Email    string
	Password string
	FullName string
	Phone    string
	Role     string
	Province string
	District string
	Office   string
}

// Record is a stored complaint in wire shape.
type Record struct {
	ID          int     `json:"id"`
	User        string  `json:"user"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	Province    string  `json:"province"`
	District    string  `json:"district"`
	Office      string  `json:"office"`
	Remarks     *string `json:"remarks"`
	Status      string  `json:"status"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`

	ownerID int
}

// Request is one observed inbound request.
type Request struct {
	Method        string
	Path          string
	Authorization string
	RequestID     string
}

type injected struct {
	status int
	body   string
}

// Locations mirrors the GET locations/ body.
type Locations struct {
	Provinces []string                       `json:"provinces"`
	Districts map[string][]string            `json:"districts"`
	Offices   map[string]map[string][]string `json:"offices"`
}

// Server is a running fake backend.
type Server struct {
	*httptest.Server

	mu         sync.Mutex
	signingKey []byte
	tokenTTL   time.Duration
	now        func() time.Time
	users      []User
	records    []*Record
	nextID     int
	locations  Locations
	codes      map[string]string
	resets     map[string]string
	requests   []Request
	failures   map[string][]injected
	sleep      time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithTokenTTL sets the lifetime of issued access tokens.
func WithTokenTTL(ttl time.Duration) Option {
	return func(s *Server) {
		s.tokenTTL = ttl
	}
}

// WithLocations replaces the default Bagmati catalog.
func WithLocations(locations Locations) Option {
	return func(s *Server) {
		s.locations = locations
	}
}

// WithLatency delays every response.
func WithLatency(delay time.Duration) Option {
	return func(s *Server) {
		s.sleep = delay
	}
}

// New starts a fake backend that is closed when tb finishes.
func New(tb testing.TB, options ...Option) *Server {
	tb.Helper()

	server := &Server{
		signingKey: []byte("apitest-" + uuid.NewString()),
		tokenTTL:   time.Hour,
		now:        time.Now,
		nextID:     1,
		locations:  DefaultLocations(),
		codes:      map[string]string{},
		resets:     map[string]string{},
		failures:   map[string][]injected{},
	}
	for _, option := range options {
		option(server)
	}
	server.Server = httptest.NewServer(server.routes())
	tb.Cleanup(server.Close)
	return server
}

// DefaultLocations returns a small Bagmati catalog.
func DefaultLocations() Locations {
	offices := []string{"Ward Office", "Municipality Office", "Electricity Authority", "Water Supply"}
	return Locations{
		Provinces: []string{"Bagmati"},
		Districts: map[string][]string{"Bagmati": {"Kathmandu", "Lalitpur", "Bhaktapur"}},
		Offices: map[string]map[string][]string{
			"Bagmati": {
				"Kathmandu": offices,
				"Lalitpur":  offices,
				"Bhaktapur": offices,
			},
		},
	}
}

// BaseURL returns the api root the client should be pointed at.
func (s *Server) BaseURL() string {
	return s.URL + "/api/"
}

// AddUser registers an account and returns its id.
func (s *Server) AddUser(user User) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	user.ID = len(s.users) + 1
	if user.Role == "" {
		user.Role = "user"
	}
	s.users = append(s.users, user)
	return user.ID
}

// Seed stores a complaint owned by ownerID and returns its id.
func (s *Server) Seed(ownerID int, record Record) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := record
	stored.ID = s.nextID
	s.nextID++
	stored.ownerID = ownerID
	if stored.Status == "" {
		stored.Status = "Pending"
	}
	stamp := s.now().UTC().Format(time.RFC3339Nano)
	if stored.CreatedAt == "" {
		stored.CreatedAt = stamp
	}
	if stored.UpdatedAt == "" {
		stored.UpdatedAt = stamp
	}
	if owner := s.userByID(ownerID); owner != nil {
		stored.User = owner.Email
	}
	s.records = append(s.records, &stored)
	return stored.ID
}

// SetStatus changes a stored complaint's status behind the client's back.
func (s *Server) SetStatus(id int, status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if record := s.recordByID(id); record != nil {
		record.Status = status
	}
}

// Complaint returns a copy of a stored complaint.
func (s *Server) Complaint(id int) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record := s.recordByID(id)
	if record == nil {
		return Record{}, false
	}
	return *record, true
}

// FailNext makes the next request to method+path return status with body.
func (s *Server) FailNext(method, path string, status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := method + " " + path
	s.failures[key] = append(s.failures[key], injected{status: status, body: body})
}

// Requests returns the requests observed so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.requests)
}

// IssueToken mints an access token for userID with the given lifetime.
func (s *Server) IssueToken(userID int, ttl time.Duration) string {
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   strconv.Itoa(userID),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		ID:        uuid.NewString(),
	})
	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		panic(fmt.Sprintf("sign token: %v", err))
	}
	return signed
}

func (s *Server) routes() http.Handler {
	router := chi.NewRouter()
	router.Use(s.observe)
	router.Route("/api", func(r chi.Router) {
		r.Post("/auth/login/", s.handleLogin)
		r.Post("/auth/refresh/", s.handleRefresh)
		r.Post("/auth/register/", s.handleRegister)
		r.Post("/auth/forgot-password/", s.handleForgot("email"))
		r.Post("/auth/forgot-password-phone/", s.handleForgot("phone"))
		r.Post("/auth/verify-otp/", s.handleVerify("email"))
		r.Post("/auth/verify-otp-phone/", s.handleVerify("phone"))
		r.Post("/auth/reset-password/", s.handleReset("email"))
		r.Post("/auth/reset-password-phone/", s.handleReset("phone"))
		r.Get("/locations/", s.handleLocations)

		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)
			r.Get("/me/", s.handleMe)
			r.Get("/complaints/", s.handleList)
			r.Post("/complaints/", s.handleCreate)
			r.Get("/complaints/{id}/", s.handleGet)
			r.Patch("/complaints/{id}/", s.handlePatch)
		})
	})
	return router
}

func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests = append(s.requests, Request{
			Method:        r.Method,
			Path:          r.URL.Path,
			Authorization: r.Header.Get("Authorization"),
			RequestID:     r.Header.Get("X-Request-ID"),
		})
		key := r.Method + " " + r.URL.Path
		var failure *injected
		if queued := s.failures[key]; len(queued) > 0 {
			failure = &queued[0]
			s.failures[key] = queued[1:]
		}
		delay := s.sleep
		s.mu.Unlock()

		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}
		if failure != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(failure.status)
			_, _ = w.Write([]byte(failure.body))
			return
		}
		next.ServeHTTP(w, r)
	})
}

type userKey struct{}

func withUser(ctx context.Context, user User) context.Context {
	return context.WithValue(ctx, userKey{}, user)
}

func userFrom(ctx context.Context) User {
	user, _ := ctx.Value(userKey{}).(User)
	return user
}

func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Authentication credentials were not provided."})
			return
		}

		claims := &jwt.RegisteredClaims{}
		_, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrTokenUnverifiable
			}
			return s.signingKey, nil
		}, jwt.WithTimeFunc(s.now))
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Given token not valid for any token type"})
			return
		}
		userID, err := strconv.Atoi(claims.Subject)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Token contained no recognizable user identification"})
			return
		}

		s.mu.Lock()
		user := s.userByID(userID)
		s.mu.Unlock()
		if user == nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "User not found"})
			return
		}
		next.ServeHTTP(w, r.WithContext(withUser(r.Context(), *user)))
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if !readJSON(w, r, &body) {
		return
	}

	s.mu.Lock()
	var match *User
	for i := range s.users {
		if strings.EqualFold(s.users[i].Email, strings.TrimSpace(body.Username)) && s.users[i].Password == body.Password {
			match = &s.users[i]
			break
		}
	}
	s.mu.Unlock()

	if match == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "No active account found with the given credentials"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"access":  s.IssueToken(match.ID, s.tokenTTL),
		"refresh": s.IssueToken(match.ID, 24*time.Hour),
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Refresh string `json:"refresh"`
	}
	if !readJSON(w, r, &body) {
		return
	}
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(body.Refresh, claims, func(*jwt.Token) (any, error) {
		return s.signingKey, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Token is invalid or expired"})
		return
	}
	userID, _ := strconv.Atoi(claims.Subject)
	writeJSON(w, http.StatusOK, map[string]string{"access": s.IssueToken(userID, s.tokenTTL)})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var body struct {
		FullName        string `json:"full_name"`
		Email           string `json:"email"`
		Phone           string `json:"phone"`
		Password        string `json:"password"`
		ConfirmPassword string `json:"confirm_password"`
	}
	if !readJSON(w, r, &body) {
		return
	}
	if body.ConfirmPassword != "" && body.ConfirmPassword != body.Password {
		writeJSON(w, http.StatusBadRequest, map[string][]string{"password": {"Passwords do not match"}})
		return
	}

	s.mu.Lock()
	for _, user := range s.users {
		if strings.EqualFold(user.Email, body.Email) {
			s.mu.Unlock()
			writeJSON(w, http.StatusBadRequest, map[string][]string{"email": {"Email already registered"}})
			return
		}
	}
	s.mu.Unlock()

	id := s.AddUser(User{Email: body.Email, Password: body.Password, FullName: body.FullName, Phone: body.Phone})
	writeJSON(w, http.StatusCreated, map[string]any{"id": id, "email": body.Email, "role": "user"})
}

func (s *Server) handleForgot(channel string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		if !readJSON(w, r, &body) {
			return
		}
		identifier := strings.TrimSpace(body[channel])
		if identifier == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"detail": capitalize(channel) + " is required"})
			return
		}
		s.mu.Lock()
		s.codes[channel+":"+identifier] = ResetCode
		s.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]string{"detail": "OTP sent to " + channel})
	}
}

func (s *Server) handleVerify(channel string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		if !readJSON(w, r, &body) {
			return
		}
		key := channel + ":" + strings.TrimSpace(body[channel])
		s.mu.Lock()
		code, ok := s.codes[key]
		if ok && code == body["otp"] {
			delete(s.codes, key)
			s.resets[key] = "reset-" + uuid.NewString()
		}
		token := s.resets[key]
		s.mu.Unlock()

		switch {
		case !ok:
			writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "OTP expired or not found"})
		case code != body["otp"]:
			writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "Invalid OTP"})
		default:
			writeJSON(w, http.StatusOK, map[string]string{"detail": "OTP verified", "reset_token": token})
		}
	}
}

func (s *Server) handleReset(channel string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		if !readJSON(w, r, &body) {
			return
		}
		identifier := strings.TrimSpace(body[channel])
		key := channel + ":" + identifier

		s.mu.Lock()
		defer s.mu.Unlock()
		if stored, ok := s.resets[key]; !ok || stored != body["reset_token"] {
			writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "Invalid or expired reset token"})
			return
		}
		delete(s.resets, key)
		for i := range s.users {
			if (channel == "email" && strings.EqualFold(s.users[i].Email, identifier)) ||
				(channel == "phone" && s.users[i].Phone == identifier) {
				s.users[i].Password = body["new_password"]
				writeJSON(w, http.StatusOK, map[string]string{"detail": "Password reset successfully"})
				return
			}
		}
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "User not found"})
	}
}

func (s *Server) handleLocations(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	locations := s.locations
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, locations)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	fullName := strings.TrimSpace(user.FullName)
	if fullName == "" {
		fullName = user.Email
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":                user.ID,
		"email":             user.Email,
		"full_name":         fullName,
		"role":              user.Role,
		"assigned_province": user.Province,
		"assigned_district": user.District,
		"assigned_office":   user.Office,
	})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	s.mu.Lock()
	out := make([]Record, 0, len(s.records))
	for i := len(s.records) - 1; i >= 0; i-- {
		record := s.records[i]
		if visible(user, record) {
			out = append(out, *record)
		}
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	record, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	var body Record
	if !readJSON(w, r, &body) {
		return
	}

	missing := []string{}
	for name, value := range map[string]string{"province": body.Province, "district": body.District, "office": body.Office} {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		writeJSON(w, http.StatusBadRequest, map[string]string{"location": "Missing fields: " + strings.Join(missing, ", ")})
		return
	}

	s.mu.Lock()
	valid := slices.Contains(s.locations.Offices[body.Province][body.District], body.Office)
	s.mu.Unlock()
	if !valid {
		writeJSON(w, http.StatusBadRequest, map[string]string{"location": "Invalid province/district/office combination"})
		return
	}

	body.Status = "Pending"
	body.Remarks = nil
	body.CreatedAt = ""
	body.UpdatedAt = ""
	id := s.Seed(user.ID, body)
	record, _ := s.Complaint(id)
	writeJSON(w, http.StatusCreated, record)
}

func (s *Server) handlePatch(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	if user.Role != "admin" {
		writeJSON(w, http.StatusForbidden, map[string]string{"detail": "Admin only"})
		return
	}

	var body map[string]*string
	if !readJSON(w, r, &body) {
		return
	}
	for key := range body {
		if key != "status" && key != "remarks" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "Only status and remarks can be updated"})
			return
		}
	}

	record, ok := s.lookup(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	stored := s.recordByID(record.ID)
	if next := body["status"]; next != nil && *next != stored.Status {
		if !slices.Contains(transitions[stored.Status], *next) {
			writeJSON(w, http.StatusBadRequest, map[string][]string{
				"status": {fmt.Sprintf("Cannot change %s to %s", stored.Status, *next)},
			})
			return
		}
		stored.Status = *next
	}
	if remarks, ok := body["remarks"]; ok {
		stored.Remarks = remarks
	}
	stored.UpdatedAt = s.now().UTC().Format(time.RFC3339Nano)
	writeJSON(w, http.StatusOK, *stored)
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (Record, bool) {
	user := userFrom(r.Context())
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Not found."})
		return Record{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	record := s.recordByID(id)
	if record == nil || !visible(user, record) {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Not found."})
		return Record{}, false
	}
	return *record, true
}

func visible(user User, record *Record) bool {
	if user.Role != "admin" {
		return record.ownerID == user.ID
	}
	if user.Province != "" && record.Province != user.Province {
		return false
	}
	if user.District != "" && record.District != user.District {
		return false
	}
	if user.Office != "" && record.Office != user.Office {
		return false
	}
	return true
}

func (s *Server) userByID(id int) *User {
	for i := range s.users {
		if s.users[i].ID == id {
			return &s.users[i]
		}
	}
	return nil
}

func (s *Server) recordByID(id int) *Record {
	for _, record := range s.records {
		if record.ID == id {
			return record
		}
	}
	return nil
}

func readJSON(w http.ResponseWriter, r *http.Request, out any) bool {
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "JSON parse error - " + err.Error()})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func capitalize(value string) string {
	if value == "" {
		return value
	}
	return strings.ToUpper(value[:1]) + value[1:]
}
