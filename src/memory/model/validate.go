package model

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// Draft carries caller supplied fields for a new memory.
type Draft struct {
	OwnerID        string     `validate:"required,max=255"`
	Content        string     `validate:"required"`
	Type           MemoryType `validate:"required,memorytype"`
	Category       string     `validate:"max=100"`
	Tags           []string   `validate:"dive,max=50"`
	SourcePlatform string     `validate:"max=100"`
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		_ = validate.RegisterValidation("memorytype", func(fl validator.FieldLevel) bool {
			return MemoryType(fl.Field().String()).Valid()
		})
	})
	return validate
}

// Validate checks a draft and returns a readable error listing every failed field.
func (d Draft) Validate() error {
	err := validatorInstance().Struct(d)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", fe.Field()))
		case "memorytype":
			msgs = append(msgs, fmt.Sprintf("%s must be one of user, session, agent", fe.Field()))
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}
