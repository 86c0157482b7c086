package analysis

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/mkkukul/Elif-Hoca/internal/llm"
	"github.com/mkkukul/Elif-Hoca/internal/model"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report contract field names rather than Go field names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Decode extracts the JSON object from a raw model response, decodes it and validates it
// against the response contract.
func Decode(raw string) (*model.AnalysisResult, error) {
	obj, err := llm.ExtractObject(raw)
	if err != nil {
		switch {
		case errors.Is(err, llm.ErrEmptyResponse):
			return nil, newError(KindEmptyResponse, err)
		default:
			return nil, newError(KindNoJSON, err)
		}
	}

	var result model.AnalysisResult
	if err := json.Unmarshal([]byte(obj), &result); err != nil {
		return nil, newError(KindParse, fmt.Errorf("decode analysis JSON: %w", err))
	}

	if err := Validate(&result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Validate checks a decoded result against the contract.
func Validate(result *model.AnalysisResult) error {
	if result == nil {
		return newError(KindSchema, errors.New("analysis result is missing"))
	}
	if err := validate.Struct(result); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return newError(KindSchema, summarize(verrs))
		}
		return newError(KindSchema, err)
	}
	return nil
}

// summarize lists the offending fields, e.g. "exams_history[0].genel_yuzdelik failed lte=100".
func summarize(verrs validator.ValidationErrors) error {
	const maxListed = 5
	parts := make([]string, 0, maxListed)
	for i, fe := range verrs {
		if i == maxListed {
			parts = append(parts, fmt.Sprintf("and %d more", len(verrs)-maxListed))
			break
		}
		field := fe.Namespace()
		if idx := strings.Index(field, "."); idx >= 0 {
			field = field[idx+1:]
		}
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		parts = append(parts, field+" failed "+rule)
	}
	return fmt.Errorf("response violates contract: %s", strings.Join(parts, "; "))
}
