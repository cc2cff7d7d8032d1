package upload

import (
	"errors"
	"regexp"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
)

// MaxFileSize is the largest accepted lecture file.
const MaxFileSize = 5 << 20

// AcceptedMIME is the only accepted lecture file type.
const AcceptedMIME = "application/pdf"

var lectureNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// form is what the validator sees. Field order decides which check reports first.
type form struct {
	LectureName string `validate:"required,lecturename"`
	FileName    string `validate:"required"`
	Content     []byte `validate:"min=1"`
	MIME        string `validate:"eq=application/pdf"`
	Size        int    `validate:"max=5242880"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("lecturename", func(fl validator.FieldLevel) bool {
		return lectureNamePattern.MatchString(fl.Field().String())
	}); err != nil {
		panic(err)
	}
	return v
}

// ValidLectureName reports whether name is non-empty and made of letters,
// digits, underscores and hyphens only.
func ValidLectureName(name string) bool {
	return validate.Var(name, "required,lecturename") == nil
}

// check validates the inputs without touching the network. It returns the
// sniffed content type, or the message ID of the first failing check.
func check(name, fileName string, content []byte) (string, string) {
	mt := mimetype.Detect(content)
	f := form{
		LectureName: name,
		FileName:    fileName,
		Content:     content,
		MIME:        mt.String(),
		Size:        len(content),
	}
	// Aliases such as application/x-pdf count as PDF.
	if mt.Is(AcceptedMIME) {
		f.MIME = AcceptedMIME
	}

	err := validate.Struct(f)
	if err == nil {
		return f.MIME, ""
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) || len(ve) == 0 {
		return "", "UploadFailed"
	}
	first := ve[0]
	switch first.StructField() {
	case "LectureName":
		if first.Tag() == "required" {
			return "", "LectureNameRequired"
		}
		return "", "LectureNameInvalid"
	case "FileName", "Content":
		return "", "FileRequired"
	case "MIME":
		return "", "FileNotPDF"
	default:
		return "", "FileTooLarge"
	}
}
