package models

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/xuri/excelize/v2"
)

// RegisterWithValidator adds the "cell" tag used on PassRecord.
func RegisterWithValidator(v *validator.Validate) error {
	return v.RegisterValidation("cell", validateCell)
}

func validateCell(fl validator.FieldLevel) bool {
	if fl.Field().Kind() != reflect.String {
		return false
	}
	return CheckCell(fl.Field().String()) == nil
}

// MaxTextLen is the most runes a workbook cell holds.
const MaxTextLen = excelize.TotalCellChars

// workbooks read _xHHHH_ as an escaped character
var cellEscape = regexp.MustCompile(`_x[0-9A-Fa-f]{4}_`)

// CheckCell returns an error when s would not read back from a workbook cell
// exactly as written.
func CheckCell(s string) error {
	if n := utf8.RuneCountInString(s); n > MaxTextLen {
		return fmt.Errorf("%d characters, at most %d allowed", n, MaxTextLen)
	}
	if !utf8.ValidString(s) {
		return errors.New("invalid UTF-8")
	}
	for _, r := range s {
		if r < 0x20 {
			return fmt.Errorf("control character %U", r)
		}
	}
	if m := cellEscape.FindString(s); m != "" {
		return fmt.Errorf("escape sequence %q", m)
	}
	return nil
}

// CheckCells runs CheckCell on every text column of rec.
func CheckCells(rec PassRecord) error {
	for _, c := range []struct{ name, value string }{
		{"para", rec.Para},
		{"id", rec.ID},
		{"link", rec.Link},
		{"user", rec.User},
	} {
		if err := CheckCell(c.value); err != nil {
			return fmt.Errorf("%s: %w", c.name, err)
		}
	}
	return nil
}
