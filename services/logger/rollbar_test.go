package logsvc

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/recqa/core/grade"
	"github.com/trezcool/recqa/core/user"
)

func TestRollbarLogger_prepare(t *testing.T) {
	var l RollbarLogger
	err := errors.New("deadlock detected")
	usr := user.User{ID: "1", Name: "QA", Email: "qa@x.com"}
	g := grade.TeacherGrade{TeacherID: "t.jane@x.com", Month: 3, Year: 2024}

	got := l.prepare("grade transaction failed", []interface{}{err, usr, g, usr})
	want := []interface{}{
		"grade transaction failed",
		err,
		map[string]interface{}{"teacher_id": "t.jane@x.com", "month": 3, "year": 2024},
	}
	assert.Equal(t, want, got)
}
