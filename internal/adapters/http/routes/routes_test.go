package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sync"
	"testing"
	"time"

	"energia-backend/internal/adapters/http/middleware"
	"energia-backend/internal/adapters/persistence/repositories"
	"energia-backend/internal/adapters/persistence/testdb"
	"energia-backend/internal/config"
	"energia-backend/internal/core/domain"
	"energia-backend/internal/core/services"
	"energia-backend/internal/pkg/jwt"
	"energia-backend/internal/pkg/metrics"
	"energia-backend/internal/pkg/password"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func init() {
	password.Configure(1024, 1)
}

var (
	otpPattern  = regexp.MustCompile(`font-weight: bold;">(\d+)</p>`)
	tempPattern = regexp.MustCompile(`<strong>Password:</strong> ([^<\s]+)`)
)

type recordingMailer struct {
	mu   sync.Mutex
	sent []*services.Message
	err  error
}

func (m *recordingMailer) Send(_ context.Context, msg *services.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *recordingMailer) last(t *testing.T) *services.Message {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.sent)
	return m.sent[len(m.sent)-1]
}

type testServer struct {
	app     *fiber.App
	store   repositories.Store
	mailer  *recordingMailer
	issuer  *jwt.Issuer
	metrics *metrics.Metrics
}

func testConfig() *config.Config {
	return &config.Config{
		AppMode: "dev",
		JWT: config.JWTConfig{
			Secret: "routes-test-secret",
			Issuer: "energia-test",
			TTL:    time.Hour,
		},
		Reset: config.ResetConfig{OTPLength: 6, OTPTTL: 5 * time.Minute, MaxAttempts: 5},
		Mail:  config.MailConfig{Timeout: time.Second},
	}
}

func newServerWithStore(t *testing.T, store repositories.Store) *testServer {
	t.Helper()
	cfg := testConfig()
	mailer := &recordingMailer{}
	m := metrics.NewMetrics(prometheus.NewRegistry())

	app := fiber.New(fiber.Config{ErrorHandler: middleware.CustomErrorHandler})
	Setup(app, &Deps{Config: cfg, Store: store, Mailer: mailer, Metrics: m})

	return &testServer{
		app:     app,
		store:   store,
		mailer:  mailer,
		issuer:  jwt.NewIssuer(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.TTL),
		metrics: m,
	}
}

func newServer(t *testing.T) *testServer {
	return newServerWithStore(t, repositories.NewStore(testdb.Open(t)))
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]interface{}{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp.StatusCode, out
}

func (s *testServer) seedStaff(t *testing.T, username, pw string, role domain.Role) *domain.Principal {
	t.Helper()
	hash, err := password.Hash(pw)
	require.NoError(t, err)
	p := &domain.Principal{
		Kind:         domain.KindStaff,
		Username:     username,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    time.Now().UTC(),
	}
	require.NoError(t, s.store.Repos().Principals.Create(context.Background(), p))
	return p
}

func (s *testServer) seedStudent(t *testing.T, ktuID, email, pw string) *domain.Principal {
	t.Helper()
	hash, err := password.Hash(pw)
	require.NoError(t, err)
	p := &domain.Principal{
		Kind:         domain.KindStudent,
		Username:     ktuID,
		PasswordHash: hash,
		Role:         domain.RoleStudent,
		Name:         "Student " + ktuID,
		KtuID:        ktuID,
		Email:        email,
		Department:   "CSE",
		Year:         "3",
		CreatedAt:    time.Now().UTC(),
	}
	require.NoError(t, s.store.Repos().Principals.Create(context.Background(), p))
	return p
}

func (s *testServer) token(t *testing.T, p *domain.Principal) string {
	t.Helper()
	token, err := s.issuer.Issue(p)
	require.NoError(t, err)
	return token
}

func TestRegisterAndLogin(t *testing.T) {
	s := newServer(t)
	_, err := s.store.Repos().Authorizations.Ensure(context.Background(), &domain.AuthorizationRecord{
		KtuID: "TVE21CS001", Department: "CSE", Year: "3",
	})
	require.NoError(t, err)

	student := map[string]string{
		"username":   "TVE21CS001",
		"password":   "pw1",
		"role":       "student",
		"ktu_id":     "TVE21CS001",
		"department": "CSE",
		"year":       "3",
		"email":      "a@x.com",
	}
	status, body := s.do(t, "POST", "/register", "", student)
	require.Equal(t, fiber.StatusOK, status, body)
	assert.Equal(t, "ok", body["status"])

	status, body = s.do(t, "POST", "/register", "", student)
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, "conflict", body["code"])

	student["ktu_id"] = "UNKNOWN"
	student["username"] = "UNKNOWN"
	student["email"] = "b@x.com"
	status, body = s.do(t, "POST", "/register", "", student)
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Equal(t, "not_authorized", body["code"])

	status, body = s.do(t, "POST", "/login", "", map[string]string{"username": "tve21cs001", "password": "pw1"})
	require.Equal(t, fiber.StatusOK, status, body)
	assert.Equal(t, "bearer", body["token_type"])

	claims, err := s.issuer.Parse(body["access_token"].(string))
	require.NoError(t, err)
	assert.Equal(t, "student", claims.Role)
	assert.Equal(t, "TVE21CS001", claims.Username)
	require.NotNil(t, claims.Email)
	assert.Equal(t, "a@x.com", *claims.Email)

	// The same routes are served under /auth
	status, _ = s.do(t, "POST", "/auth/login", "", map[string]string{"username": "TVE21CS001", "password": "pw1"})
	assert.Equal(t, fiber.StatusOK, status)
}

func TestLoginFailuresLookIdentical(t *testing.T) {
	s := newServer(t)
	s.seedStaff(t, "coord@cet.ac.in", "secret", domain.RoleCoordinator)

	wrongStatus, wrongBody := s.do(t, "POST", "/login", "", map[string]string{"username": "coord@cet.ac.in", "password": "nope"})
	unknownStatus, unknownBody := s.do(t, "POST", "/login", "", map[string]string{"username": "ghost@cet.ac.in", "password": "nope"})

	assert.Equal(t, fiber.StatusUnauthorized, wrongStatus)
	assert.Equal(t, wrongStatus, unknownStatus)
	assert.Equal(t, wrongBody, unknownBody)
	assert.Equal(t, "invalid_credentials", wrongBody["code"])
	assert.Equal(t, "Invalid credentials", wrongBody["detail"])

	status, body := s.do(t, "POST", "/login", "", map[string]string{"username": "", "password": ""})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "validation_error", body["code"])
}

func TestAuthLimiterSharedAcrossMounts(t *testing.T) {
	s := newServer(t)
	creds := map[string]string{"username": "ghost@cet.ac.in", "password": "nope"}

	for i := 0; i < 10; i++ {
		path := "/login"
		if i%2 == 1 {
			path = "/auth/login"
		}
		status, _ := s.do(t, "POST", path, "", creds)
		require.Equal(t, fiber.StatusUnauthorized, status, "request %d", i+1)
	}

	status, body := s.do(t, "POST", "/auth/login", "", creds)
	assert.Equal(t, fiber.StatusTooManyRequests, status)
	assert.Equal(t, "rate_limited", body["code"])

	status, _ = s.do(t, "POST", "/login", "", creds)
	assert.Equal(t, fiber.StatusTooManyRequests, status)
}

func TestChangePassword(t *testing.T) {
	s := newServer(t)
	s.seedStaff(t, "coord@cet.ac.in", "old-pass", domain.RoleCoordinator)

	status, body := s.do(t, "POST", "/change-password", "", map[string]string{
		"username": "coord@cet.ac.in", "current_password": "wrong", "new_password": "new-pass",
	})
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "invalid_credentials", body["code"])

	status, body = s.do(t, "POST", "/change-password", "", map[string]string{
		"username": "coord@cet.ac.in", "current_password": "old-pass", "new_password": "new-pass",
	})
	require.Equal(t, fiber.StatusOK, status, body)
	assert.Equal(t, "Password updated successfully", body["status"])

	status, _ = s.do(t, "POST", "/login", "", map[string]string{"username": "coord@cet.ac.in", "password": "old-pass"})
	assert.Equal(t, fiber.StatusUnauthorized, status)
	status, _ = s.do(t, "POST", "/login", "", map[string]string{"username": "coord@cet.ac.in", "password": "new-pass"})
	assert.Equal(t, fiber.StatusOK, status)
}

func TestPasswordResetFlow(t *testing.T) {
	s := newServer(t)
	s.seedStudent(t, "TVE21CS045", "rep@cet.ac.in", "old-pass")

	status, body := s.do(t, "POST", "/request-password-reset", "", map[string]string{"username": "TVE21CS045"})
	require.Equal(t, fiber.StatusOK, status, body)
	assert.Equal(t, "otp_sent", body["status"])
	assert.EqualValues(t, 5, body["expires_in_minutes"])

	msg := s.mailer.last(t)
	assert.Equal(t, []string{"rep@cet.ac.in"}, msg.To)
	match := otpPattern.FindStringSubmatch(msg.HTMLBody)
	require.Len(t, match, 2)
	code := match[1]

	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	status, body = s.do(t, "POST", "/confirm-password-reset", "", map[string]string{
		"username": "TVE21CS045", "otp": wrong, "new_password": "new-pass",
	})
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "invalid_credentials", body["code"])

	status, body = s.do(t, "POST", "/confirm-password-reset", "", map[string]string{
		"username": "TVE21CS045", "otp": code, "new_password": "new-pass",
	})
	require.Equal(t, fiber.StatusOK, status, body)
	assert.Equal(t, "password_reset", body["status"])

	status, body = s.do(t, "POST", "/confirm-password-reset", "", map[string]string{
		"username": "TVE21CS045", "otp": code, "new_password": "other",
	})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "no_active_request", body["code"])

	status, _ = s.do(t, "POST", "/login", "", map[string]string{"username": "TVE21CS045", "password": "new-pass"})
	assert.Equal(t, fiber.StatusOK, status)
}

func TestRequestPasswordResetErrors(t *testing.T) {
	s := newServer(t)
	s.seedStaff(t, "coord@cet.ac.in", "secret", domain.RoleCoordinator)

	status, body := s.do(t, "POST", "/request-password-reset", "", map[string]string{"username": "ghost"})
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "not_found", body["code"])

	s.mailer.err = errors.New("smtp down")
	status, body = s.do(t, "POST", "/request-password-reset", "", map[string]string{"username": "coord@cet.ac.in"})
	assert.Equal(t, fiber.StatusBadGateway, status)
	assert.Equal(t, "delivery_failed", body["code"])
}

func TestUpdateProfile(t *testing.T) {
	s := newServer(t)
	owner := s.seedStudent(t, "TVE21CS046", "rep46@cet.ac.in", "pw")
	other := s.seedStudent(t, "IDK22CS017", "rep17@cet.ac.in", "pw")
	admin := s.seedStaff(t, "admin@cet.ac.in", "pw", domain.RoleAdmin)

	update := map[string]string{"ktu_id": "TVE21CS046", "name": "Asha", "department": "EEE", "year": "4"}

	status, _ := s.do(t, "POST", "/update-profile", "", update)
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, body := s.do(t, "POST", "/update-profile", s.token(t, other), update)
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Equal(t, "forbidden", body["code"])

	status, body = s.do(t, "POST", "/update-profile", s.token(t, owner), update)
	require.Equal(t, fiber.StatusOK, status, body)
	assert.Equal(t, "Profile updated successfully", body["status"])

	claims, err := s.issuer.Parse(body["access_token"].(string))
	require.NoError(t, err)
	assert.Equal(t, "Asha", claims.Name)
	require.NotNil(t, claims.Department)
	assert.Equal(t, "EEE", *claims.Department)

	missing := map[string]string{"ktu_id": "TVE99XX000", "name": "X", "department": "CSE", "year": "1"}
	status, body = s.do(t, "POST", "/auth/update-profile", s.token(t, admin), missing)
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "not_found", body["code"])
}

func TestInviteUser(t *testing.T) {
	s := newServer(t)
	admin := s.seedStaff(t, "admin@cet.ac.in", "pw", domain.RoleAdmin)
	coordinator := s.seedStaff(t, "coord@cet.ac.in", "pw", domain.RoleCoordinator)

	invite := map[string]string{"username": "new.coord@cet.ac.in", "role": "coordinator", "name": "New Coordinator"}

	status, _ := s.do(t, "POST", "/admin/invite-user", s.token(t, coordinator), invite)
	assert.Equal(t, fiber.StatusForbidden, status)

	status, body := s.do(t, "POST", "/admin/invite-user", s.token(t, admin), invite)
	require.Equal(t, fiber.StatusOK, status, body)
	assert.Equal(t, "User created successfully", body["status"])
	assert.Equal(t, "sent", body["email_status"])
	assert.Equal(t, "coordinator", body["role"])

	match := tempPattern.FindStringSubmatch(s.mailer.last(t).HTMLBody)
	require.Len(t, match, 2)
	status, _ = s.do(t, "POST", "/login", "", map[string]string{"username": "new.coord@cet.ac.in", "password": match[1]})
	assert.Equal(t, fiber.StatusOK, status)

	// Delivery failure keeps the provisioning
	s.mailer.err = errors.New("smtp down")
	status, body = s.do(t, "POST", "/admin/invite-user", s.token(t, admin), invite)
	require.Equal(t, fiber.StatusOK, status, body)
	assert.Equal(t, "User updated successfully", body["status"])
	assert.Equal(t, "failed", body["email_status"])

	// Resending fails loudly
	status, body = s.do(t, "POST", "/admin/resend-invite", s.token(t, admin), map[string]string{
		"username": "new.coord@cet.ac.in", "role": "coordinator",
	})
	assert.Equal(t, fiber.StatusBadGateway, status)
	assert.Equal(t, "delivery_failed", body["code"])

	s.mailer.err = nil
	status, body = s.do(t, "POST", "/admin/resend-invite", s.token(t, admin), map[string]string{
		"username": "new.coord@cet.ac.in", "role": "coordinator",
	})
	require.Equal(t, fiber.StatusOK, status, body)
	assert.Equal(t, "sent", body["email_status"])
}

func TestUserAdministration(t *testing.T) {
	s := newServer(t)
	admin := s.seedStaff(t, "admin@cet.ac.in", "pw", domain.RoleAdmin)
	s.seedStaff(t, "coord@cet.ac.in", "pw", domain.RoleCoordinator)
	student := s.seedStudent(t, "TVE21CS001", "rep@cet.ac.in", "pw")
	token := s.token(t, admin)

	status, _ := s.do(t, "GET", "/users/counts", s.token(t, student), nil)
	assert.Equal(t, fiber.StatusForbidden, status)

	status, body := s.do(t, "GET", "/users/counts", token, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.EqualValues(t, 3, body["total_users"])
	assert.EqualValues(t, 1, body["coordinators"])
	assert.EqualValues(t, 1, body["class_representatives"])
	assert.EqualValues(t, 1, body["admins"])

	status, body = s.do(t, "GET", "/users/coordinators", token, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.EqualValues(t, 1, body["total"])
	coordinators := body["coordinators"].([]interface{})
	require.Len(t, coordinators, 1)
	assert.Equal(t, "N/A", coordinators[0].(map[string]interface{})["department"])

	status, body = s.do(t, "GET", "/users/class-representatives", token, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.EqualValues(t, 1, body["total"])

	status, body = s.do(t, "DELETE", "/users/TVE21CS001", token, nil)
	require.Equal(t, fiber.StatusOK, status, body)
	assert.Equal(t, "success", body["status"])
	assert.EqualValues(t, 1, body["deleted_count"])

	status, _ = s.do(t, "DELETE", "/users/TVE21CS001", token, nil)
	assert.Equal(t, fiber.StatusNotFound, status)

	status, _ = s.do(t, "DELETE", "/users/admin@cet.ac.in", token, nil)
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestNotify(t *testing.T) {
	s := newServer(t)
	coordinator := s.seedStaff(t, "coord@cet.ac.in", "pw", domain.RoleCoordinator)
	student := s.seedStudent(t, "TVE21CS001", "rep@cet.ac.in", "pw")

	alert := map[string]interface{}{
		"subject":    "High load in Block A",
		"body":       "Consumption exceeded the threshold.",
		"recipients": []string{"ops@cet.ac.in"},
	}

	status, _ := s.do(t, "POST", "/notify/alert", s.token(t, student), alert)
	assert.Equal(t, fiber.StatusForbidden, status)

	status, body := s.do(t, "POST", "/notify/alert", s.token(t, coordinator), alert)
	require.Equal(t, fiber.StatusOK, status, body)
	assert.Equal(t, "sent", body["status"])
	assert.Equal(t, "alert", body["type"])
	assert.Equal(t, []interface{}{"ops@cet.ac.in"}, body["recipients"])
	assert.Equal(t, "Consumption exceeded the threshold.", s.mailer.last(t).TextBody)

	alert["recipients"] = []string{"not-an-email"}
	status, body = s.do(t, "POST", "/notify/update", s.token(t, coordinator), alert)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "validation_error", body["code"])
}

func TestHealthPingAndMetrics(t *testing.T) {
	s := newServer(t)

	status, body := s.do(t, "GET", "/ping", "", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "pong", body["status"])

	status, body = s.do(t, "GET", "/health", "", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "healthy", body["checks"].(map[string]interface{})["database"])

	s.do(t, "POST", "/login", "", map[string]string{"username": "ghost", "password": "x"})

	resp, err := s.app.Test(httptest.NewRequest("GET", "/metrics", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `energia_auth_operations_total{operation="login",outcome="failure"} 1`)
}

func TestStoreOutageMapsToServiceUnavailable(t *testing.T) {
	sqlDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer sqlDB.Close()

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
		DisableAutomaticPing:   true,
	})
	require.NoError(t, err)

	s := newServerWithStore(t, repositories.NewStore(db))

	mock.ExpectQuery(`SELECT \* FROM "class_representatives"`).WillReturnError(errors.New("connection refused"))
	status, body := s.do(t, "POST", "/login", "", map[string]string{"username": "coord@cet.ac.in", "password": "pw"})
	assert.Equal(t, fiber.StatusServiceUnavailable, status)
	assert.Equal(t, "service_unavailable", body["code"])

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	status, body = s.do(t, "GET", "/health", "", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "unhealthy", body["checks"].(map[string]interface{})["database"])

	assert.NoError(t, mock.ExpectationsWereMet())
}
