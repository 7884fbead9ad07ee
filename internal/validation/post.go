// Package validation checks user input before it reaches the post store.
package validation

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode"
	"unicode/utf8"

	"jobboard/internal/media"
	"jobboard/internal/models"
)

const (
	minPhoneDigits = 6
	maxPhoneLength = 40
)

// Limits bounds the free-text fields and the image size of a draft.
type Limits struct {
	MaxTitle       int
	MaxDescription int
	MaxPixels      int
}

// DefaultLimits are applied field by field when a Limits field is zero.
var DefaultLimits = Limits{MaxTitle: 120, MaxDescription: 2000, MaxPixels: media.DefaultMaxPixels}

// ValidateDraft trims d and checks every field. It returns the trimmed draft.
func ValidateDraft(d models.Draft, limits Limits) (models.Draft, error) {
	if limits.MaxTitle <= 0 {
		limits.MaxTitle = DefaultLimits.MaxTitle
	}
	if limits.MaxDescription <= 0 {
		limits.MaxDescription = DefaultLimits.MaxDescription
	}
	if limits.MaxPixels <= 0 {
		limits.MaxPixels = DefaultLimits.MaxPixels
	}

	d.Image = strings.TrimSpace(d.Image)
	d.Title = strings.TrimSpace(d.Title)
	d.Description = strings.TrimSpace(d.Description)
	d.Phone = strings.TrimSpace(d.Phone)

	switch {
	case d.Image == "":
		return d, models.NewValidationError("Image is required")
	case d.Title == "":
		return d, models.NewValidationError("Title is required")
	case d.Description == "":
		return d, models.NewValidationError("Description is required")
	case d.Phone == "":
		return d, models.NewValidationError("Phone is required")
	}

	if utf8.RuneCountInString(d.Title) > limits.MaxTitle {
		return d, models.NewValidationError(fmt.Sprintf("Title too long (max %d characters)", limits.MaxTitle))
	}
	if utf8.RuneCountInString(d.Description) > limits.MaxDescription {
		return d, models.NewValidationError(fmt.Sprintf("Description too long (max %d characters)", limits.MaxDescription))
	}
	if math.IsNaN(d.Price) || math.IsInf(d.Price, 0) || d.Price == 0 {
		return d, models.NewValidationError("Price must be a non-zero number")
	}
	if err := ValidatePhone(d.Phone); err != nil {
		return d, models.NewValidationError(err.Error())
	}
	_, info, err := media.InspectDataURL(d.Image)
	if err != nil {
		return d, &models.AppError{
			Code:    models.CodeValidation,
			Message: "Image must be a JPEG, PNG, GIF or WebP data URL",
			Err:     err,
		}
	}
	if err := media.CheckPixels(info, limits.MaxPixels); err != nil {
		return d, &models.AppError{
			Code:    models.CodeValidation,
			Message: fmt.Sprintf("Image dimensions too large (max %d pixels)", limits.MaxPixels),
			Err:     err,
		}
	}

	return d, nil
}

// ValidatePhone accepts free-form contact text ("call 555 1111") as long as it
// carries enough digits to dial.
func ValidatePhone(phone string) error {
	if utf8.RuneCountInString(phone) > maxPhoneLength {
		return fmt.Errorf("phone too long (max %d characters)", maxPhoneLength)
	}
	digits := 0
	for _, r := range phone {
		if unicode.IsControl(r) {
			return errors.New("phone contains control characters")
		}
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	if digits < minPhoneDigits {
		return fmt.Errorf("phone must contain at least %d digits", minPhoneDigits)
	}
	return nil
}
