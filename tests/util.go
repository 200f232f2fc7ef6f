package testutil

import (
	"context"
	"database/sql"
	"os"
	"sync"
	"testing"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/recqa/core"
	"github.com/trezcool/recqa/core/evaluation"
	"github.com/trezcool/recqa/core/grade"
	"github.com/trezcool/recqa/core/user"
	"github.com/trezcool/recqa/storage/database"
)

// TestDatabaseURL names the env var holding the DSN of the postgres test database.
const TestDatabaseURL = "TEST_DATABASE_URL"

// NewConfig returns a config suitable for tests, independent of the environment.
func NewConfig() *core.Config {
	return &core.Config{
		AppName:     "Recording QA",
		Env:         "TEST",
		Build:       "test",
		TestMode:    true,
		SecretKey:   "test-secret-key",
		FrontendURL: "http://localhost:3000",
		Server: core.ServerConfig{
			Port:                      8000,
			ShutdownTimeout:           time.Second,
			JWTExpirationDelta:        time.Hour,
			JWTRefreshExpirationDelta: time.Hour,
		},
		Database: core.DatabaseConfig{Engine: "postgres", Name: "recqa_test"},
		Email:    core.EmailConfig{DefaultFrom: "Recording QA <noreply@test.local>"},
	}
}

// NewValidator returns a validator with every custom tag registered.
func NewValidator() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	evaluation.InitValidators(validate, translator)
	return validate, translator
}

// PrepareDB opens the postgres test database, migrates it and empties its tables.
// The test is skipped when TEST_DATABASE_URL is not set. Packages share the database: run them with -p 1.
func PrepareDB(t *testing.T) *sql.DB {
	t.Helper()

	dsn := os.Getenv(TestDatabaseURL)
	if dsn == "" {
		t.Skipf("%s not set", TestDatabaseURL)
	}
	db, err := database.OpenURL(dsn)
	if err != nil {
		t.Fatalf("PrepareDB(): %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err = database.Migrate(db); err != nil {
		t.Fatalf("PrepareDB(): %v", err)
	}
	if _, err = db.Exec("TRUNCATE users, evaluations, evaluation_templates, teacher_grades"); err != nil {
		t.Fatalf("PrepareDB(): %v", err)
	}
	return db
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Email:     email,
		Roles:     roles,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if usr.Roles == nil {
		usr.Roles = []string{}
	}
	usr.SetActive(isActive)
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser(): %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser(): %v", err)
	}
	return usr
}

// CreateTemplate stores a template rating 1..5 whose categories split the weights evenly.
func CreateTemplate(t *testing.T, repo evaluation.Repository, name string, categories ...string) evaluation.Template {
	t.Helper()

	if len(categories) == 0 {
		categories = []string{"Delivery"}
	}
	weight := 100 / float64(len(categories))
	tmpl := evaluation.Template{
		Name:        name,
		RatingScale: evaluation.RatingScale{Min: evaluation.MinScore, Max: evaluation.MaxScore},
		CreatedAt:   time.Now().UTC(),
	}
	for _, cat := range categories {
		tmpl.Categories = append(tmpl.Categories, evaluation.Category{
			Name:          cat,
			Subcategories: []evaluation.Subcategory{{Name: cat + " overall", Weight: weight}},
		})
	}
	tmpl, err := repo.CreateTemplate(context.Background(), tmpl)
	if err != nil {
		t.Fatalf("CreateTemplate(): %v", err)
	}
	return tmpl
}

// CreateEvaluation stores an evaluation of the teacher with the given overall score ("" for N/A).
func CreateEvaluation(
	t *testing.T,
	repo evaluation.Repository,
	teacherID, classCode, score string,
	createdAt time.Time,
) evaluation.Evaluation {
	t.Helper()

	ev := evaluation.Evaluation{
		TeacherID:    teacherID,
		VideoID:      "video-" + createdAt.Format("20060102150405"),
		ClassCode:    classCode,
		OverallScore: evaluation.ParseScore(score),
		Responses:    evaluation.Responses{},
		QAEvaluator:  "qa@test.local",
		CreatedAt:    createdAt.UTC(),
	}
	ev, err := repo.CreateEvaluation(context.Background(), ev)
	if err != nil {
		t.Fatalf("CreateEvaluation(): %v", err)
	}
	return ev
}

// CreateGrade stores a grade on the channel for the teacher and period.
func CreateGrade(
	t *testing.T,
	repo grade.Repository,
	teacherID string,
	value float64,
	ch evaluation.Channel,
	month, year int,
	evalIDs ...string,
) grade.TeacherGrade {
	t.Helper()

	now := time.Now().UTC().Truncate(time.Second)
	g := grade.TeacherGrade{
		TeacherID:   teacherID,
		QAEvaluator: "qa@test.local",
		Month:       month,
		Year:        year,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	g.SetChannel(ch, &value, evalIDs)
	g, err := repo.UpsertGrade(context.Background(), g, ch)
	if err != nil {
		t.Fatalf("CreateGrade(): %v", err)
	}
	return g
}

// Logger is a core.Logger that keeps the messages and arguments it receives.
type Logger struct {
	mu       sync.Mutex
	Messages []string
	Args     [][]interface{}
}

var _ core.Logger = (*Logger)(nil)

func (l *Logger) log(msg string, args []interface{}) {
	l.mu.Lock()
	l.Messages = append(l.Messages, msg)
	l.Args = append(l.Args, args)
	l.mu.Unlock()
}

func (l *Logger) Debug(msg string, args ...interface{}) { l.log(msg, args) }
func (l *Logger) Info(msg string, args ...interface{})  { l.log(msg, args) }
func (l *Logger) Warn(msg string, args ...interface{})  { l.log(msg, args) }
func (l *Logger) Error(msg string, args ...interface{}) { l.log(msg, args) }
func (l *Logger) Fatal(msg string, args ...interface{}) { l.log(msg, args) }
