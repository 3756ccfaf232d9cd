// file: services/harness_test.go
package services

import (
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/noob-master-jpb/CTFd/config"
	"github.com/noob-master-jpb/CTFd/models"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testTemplate = `{
	"Image": "placeholder",
	"ExposedPorts": {"80/tcp": {}},
	"HostConfig": {"PortBindings": {"80/tcp": [{"HostPort": ""}]}}
}`

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	err = db.AutoMigrate(
		&models.User{}, &models.Challenge{}, &models.Solve{},
		&models.Container{}, &models.Port{},
	)
	if err != nil {
		t.Fatalf("migrate test database: %v", err)
	}
	return db
}

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

// fakeBackend plays the orchestration API. Status codes are settable per
// operation so failure branches can be driven from tests.
type fakeBackend struct {
	mu sync.Mutex

	createStatus int
	startStatus  int
	deleteStatus int
	createBody   string

	createdNames []string
	startedIDs   []string
	deletedIDs   []string

	server *httptest.Server
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	fb := &fakeBackend{
		createStatus: http.StatusCreated,
		startStatus:  http.StatusNoContent,
		deleteStatus: http.StatusNoContent,
		createBody:   `{"Id":"cafebabe"}`,
	}
	fb.server = httptest.NewTLSServer(http.HandlerFunc(fb.handle))
	t.Cleanup(fb.server.Close)
	return fb
}

func (fb *fakeBackend) handle(w http.ResponseWriter, r *http.Request) {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	switch {
	case strings.HasSuffix(r.URL.Path, "/containers/create") && r.Method == http.MethodPost:
		fb.createdNames = append(fb.createdNames, r.URL.Query().Get("name"))
		w.WriteHeader(fb.createStatus)
		fmt.Fprint(w, fb.createBody)
	case strings.HasSuffix(r.URL.Path, "/start") && r.Method == http.MethodPost:
		parts := strings.Split(r.URL.Path, "/")
		fb.startedIDs = append(fb.startedIDs, parts[len(parts)-2])
		w.WriteHeader(fb.startStatus)
	case r.Method == http.MethodDelete:
		parts := strings.Split(r.URL.Path, "/")
		fb.deletedIDs = append(fb.deletedIDs, parts[len(parts)-1])
		w.WriteHeader(fb.deleteStatus)
	case strings.HasSuffix(r.URL.Path, "/containers/json") && r.Method == http.MethodGet:
		fmt.Fprint(w, `[]`)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (fb *fakeBackend) set(create, start, del int) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.createStatus, fb.startStatus, fb.deleteStatus = create, start, del
}

func (fb *fakeBackend) deleted() []string {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return append([]string(nil), fb.deletedIDs...)
}

func (fb *fakeBackend) portainerConfig(t *testing.T) config.Portainer {
	t.Helper()
	u, err := url.Parse(fb.server.URL)
	if err != nil {
		t.Fatalf("parse backend url: %v", err)
	}
	host, port, err := net.SplitHostPort(u.Host)
	if err != nil {
		t.Fatalf("split backend host: %v", err)
	}
	return config.Portainer{
		Host:        host,
		Port:        port,
		APIKey:      "test-key",
		Endpoint:    "2",
		VMIP:        "203.0.113.10",
		PayloadFile: writeTempFile(t, "payload.json", testTemplate),
	}
}

// testEnv bundles a fully wired service with seeded fixtures: user 7
// alice/a@b.com and challenge 3 (web, visible, mapped to an image).
type testEnv struct {
	db      *gorm.DB
	backend *fakeBackend
	svc     *InstanceService
	ports   *PortAllocator
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := newTestDB(t)
	rdb := newTestRedis(t)
	backend := newFakeBackend(t)

	cfg := backend.portainerConfig(t)
	client, err := NewPortainerClient(cfg)
	if err != nil {
		t.Fatalf("build backend client: %v", err)
	}

	mapPath := writeTempFile(t, "map.json", `{"3": "challs/web-login:v1"}`)
	images, err := LoadImageRegistry(mapPath)
	if err != nil {
		t.Fatalf("load image registry: %v", err)
	}

	ports := NewPortAllocator(db)
	svc := NewInstanceService(db, rdb, ports, images, client, cfg.VMIP)

	seed := []any{
		&models.User{ID: 7, Username: "alice", Password: "secret", Email: "a@b.com"},
		&models.Challenge{ID: 3, ChallengeName: "login-bypass", Category: "web", State: models.ChallengeStateVisible},
		&models.Challenge{ID: 4, ChallengeName: "heap-note", Category: "pwn", State: models.ChallengeStateVisible},
		&models.Challenge{ID: 5, ChallengeName: "staging", Category: "web", State: models.ChallengeStateHidden},
	}
	for _, record := range seed {
		if err := db.Create(record).Error; err != nil {
			t.Fatalf("seed fixture: %v", err)
		}
	}

	return &testEnv{db: db, backend: backend, svc: svc, ports: ports}
}

func (e *testEnv) countContainers(t *testing.T, userID uint32) int64 {
	t.Helper()
	var n int64
	if err := e.db.Model(&models.Container{}).Where("user_id = ?", userID).Count(&n).Error; err != nil {
		t.Fatalf("count containers: %v", err)
	}
	return n
}

func (e *testEnv) portStatus(t *testing.T, port int) (models.PortStatus, bool) {
	t.Helper()
	var row models.Port
	err := e.db.Where("port = ?", port).First(&row).Error
	if err != nil {
		return "", false
	}
	return row.Status, true
}

func (e *testEnv) countPorts(t *testing.T) int64 {
	t.Helper()
	var n int64
	if err := e.db.Model(&models.Port{}).Count(&n).Error; err != nil {
		t.Fatalf("count ports: %v", err)
	}
	return n
}
