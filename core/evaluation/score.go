package evaluation

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/recqa/core"
)

const (
	NotAvailable = "N/A"

	MinScore = 1.0
	MaxScore = 5.0
)

// Score is a numeric score that may be unavailable ("N/A").
type Score struct {
	Float64 float64
	Valid   bool
}

func NewScore(v float64) Score {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Score{}
	}
	return Score{Float64: v, Valid: true}
}

// ParseScore parses a stored score. Anything that is not a finite number is N/A.
func ParseScore(s string) Score {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, NotAvailable) {
		return Score{}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Score{}
	}
	return NewScore(v)
}

func (s Score) Ptr() *float64 {
	if !s.Valid {
		return nil
	}
	v := s.Float64
	return &v
}

func (s Score) String() string {
	if !s.Valid {
		return NotAvailable
	}
	return strconv.FormatFloat(s.Float64, 'f', -1, 64)
}

func (s Score) MarshalJSON() ([]byte, error) {
	if !s.Valid {
		return []byte(`"` + NotAvailable + `"`), nil
	}
	return []byte(s.String()), nil
}

func (s *Score) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = Score{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = ParseScore(str)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return errors.Wrap(err, "score must be a number or \"N/A\"")
	}
	*s = NewScore(v)
	return nil
}

// Scan implements the sql.Scanner interface. Scores are stored as text.
func (s *Score) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*s = Score{}
	case string:
		*s = ParseScore(v)
	case []byte:
		*s = ParseScore(string(v))
	case float64:
		*s = NewScore(v)
	case int64:
		*s = NewScore(float64(v))
	default:
		return fmt.Errorf("cannot scan %T into Score", value)
	}
	return nil
}

// Value implements the driver.Valuer interface.
func (s Score) Value() (driver.Value, error) {
	return s.String(), nil
}

func clamp(v float64) float64 {
	return math.Min(MaxScore, math.Max(MinScore, v))
}

// AverageScore averages the valid overall scores, each clamped into [1, 5],
// rounded to 2 decimals. N/A when no evaluation carries a valid score.
func AverageScore(evals []Evaluation) Score {
	var sum float64
	var n int
	for _, ev := range evals {
		if !ev.OverallScore.Valid {
			continue
		}
		sum += clamp(ev.OverallScore.Float64)
		n++
	}
	if n == 0 {
		return Score{}
	}
	return NewScore(core.Round2(sum / float64(n)))
}
