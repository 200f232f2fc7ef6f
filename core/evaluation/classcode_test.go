package evaluation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateClassCode(t *testing.T) {
	tests := []struct {
		code string
		want bool
	}{
		{code: "ps_070424_1000AM_Apple", want: true},
		{code: "kg_010124_0230PM_Banana", want: true},
		{code: "trial_070424_1000AM_Apple", want: true},
		{code: "f1_free_070424_1000AM_J.Doe", want: true},
		{code: "f12_free_070424_0900PM_Kiwi", want: true},
		{code: "ps-070424-1000am-apple", want: false},
		{code: "ps_070424_1000am_Apple", want: false},
		{code: "PS_070424_1000AM_Apple", want: false},
		{code: "ps_07042_1000AM_Apple", want: false},
		{code: "ps_070424_1000AM_Apple2", want: false},
		{code: "ps_070424_1000AM_J.Doe", want: false},
		{code: "f1_free_070424_1000AM_", want: false},
		{code: "", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidateClassCode(tt.code))
		})
	}
}

func TestClassCodePrefix(t *testing.T) {
	assert.Equal(t, "ps", ClassCodePrefix("PS_070424_1000AM_Apple"))
	assert.Equal(t, "f1", ClassCodePrefix("f1_free_070424_1000AM_J.Doe"))
	assert.Equal(t, "kg", ClassCodePrefix("KG"))
	assert.Equal(t, "", ClassCodePrefix(""))
	assert.Equal(t, "", ClassCodePrefix("_070424"))
}

func TestGetTemplateIDForClassCode(t *testing.T) {
	templates := []Template{
		{ID: "formal", Name: "Formal Schooling Rubric"},
		{ID: "informal", Name: "INFORMAL SCHOOLING Rubric"},
		{ID: "trial", Name: "Trial Class"},
	}
	// a plain substring match for "FORMAL SCHOOLING" picks the first template here
	informalFirst := []Template{templates[1], templates[0], templates[2]}

	tests := []struct {
		code      string
		templates []Template
		wantID    string
		wantOK    bool
	}{
		{code: "tp_070424_1000AM_Apple", templates: templates, wantID: "informal", wantOK: true},
		{code: "ng_070424_1000AM_Apple", templates: templates, wantID: "informal", wantOK: true},
		{code: "TC_070424_1000AM_Apple", templates: templates, wantID: "informal", wantOK: true},
		{code: "kg_070424_1000AM_Apple", templates: templates, wantID: "formal", wantOK: true},
		{code: "kg_070424_1000AM_Apple", templates: informalFirst, wantID: "formal", wantOK: true},
		{code: "gd", templates: informalFirst, wantID: "formal", wantOK: true},
		{code: "f1_free_070424_1000AM_J.Doe", templates: templates, wantID: "trial", wantOK: true},
		{code: "zz_070424_1000AM_Apple", templates: templates},
		{code: "f2_free_070424_1000AM_J.Doe", templates: templates},
		{code: "kg_070424_1000AM_Apple", templates: []Template{templates[1]}},
		{code: "ps_070424_1000AM_Apple", templates: nil},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			id, ok := GetTemplateIDForClassCode(tt.code, tt.templates)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantID, id)
		})
	}
}

func TestChannelForClassCode(t *testing.T) {
	assert.Equal(t, ChannelTrial, ChannelForClassCode("f1_free_070424_1000AM_J.Doe"))
	assert.Equal(t, ChannelTrial, ChannelForClassCode("F1_070424_1000AM_Apple"))
	assert.Equal(t, ChannelTrial, ChannelForClassCode("trial_070424_1000AM_Apple"))
	assert.Equal(t, ChannelRegular, ChannelForClassCode("ps_070424_1000AM_Apple"))
	assert.Equal(t, ChannelRegular, ChannelForClassCode("fx_070424_1000AM_Apple"))
	assert.Equal(t, ChannelRegular, ChannelForClassCode(""))
}

func TestParseChannel(t *testing.T) {
	ch, err := ParseChannel("")
	assert.NoError(t, err)
	assert.Equal(t, ChannelRegular, ch)

	ch, err = ParseChannel(" Trial ")
	assert.NoError(t, err)
	assert.Equal(t, ChannelTrial, ch)

	_, err = ParseChannel("vip")
	assert.Equal(t, ErrInvalidChannel, err)
}
