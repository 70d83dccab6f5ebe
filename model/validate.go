package model

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their JSON names so messages match the request body.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// ValidationError reports a malformed or incomplete creation payload.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Problems, "; ")
}

func invalid(problems ...string) *ValidationError {
	return &ValidationError{Problems: problems}
}

// ValidateMapCreate checks required fields, positive dimensions, that no two
// keypoints in the payload share a name, and that supplied ids are not
// repeated.
func ValidateMapCreate(mc MapCreate) error {
	if err := validateStruct(mc); err != nil {
		return err
	}
	if d := mc.Dimensions; d.Width() <= 0 || d.Height() <= 0 {
		return invalid(fmt.Sprintf("dimensions must be positive, got [%d, %d]", d.Width(), d.Height()))
	}
	seen := make(map[string]struct{}, len(mc.Keypoints))
	for _, kc := range mc.Keypoints {
		if _, dup := seen[kc.Name]; dup {
			return invalid(fmt.Sprintf("keypoint name %q is used more than once", kc.Name))
		}
		seen[kc.Name] = struct{}{}
	}

	keypointIDs := newIDSet("keypoint")
	storyIDs := newIDSet("story")
	for _, kc := range mc.Keypoints {
		if err := keypointIDs.add(kc.ID); err != nil {
			return err
		}
		if err := storyIDs.addStories(kc.Stories); err != nil {
			return err
		}
	}
	return storyIDs.addStories(mc.Stories)
}

// ValidateKeypointCreate checks the required keypoint fields and that its
// stories do not repeat a supplied id.
func ValidateKeypointCreate(kc KeypointCreate) error {
	if err := validateStruct(kc); err != nil {
		return err
	}
	return newIDSet("story").addStories(kc.Stories)
}

// idSet tracks caller-supplied ids of one entity kind. Empty ids are
// generated later and never collide.
type idSet struct {
	kind string
	seen map[string]struct{}
}

func newIDSet(kind string) *idSet {
	return &idSet{kind: kind, seen: map[string]struct{}{}}
}

func (s *idSet) add(id string) error {
	if id == "" {
		return nil
	}
	if _, dup := s.seen[id]; dup {
		return invalid(fmt.Sprintf("%s id %q is used more than once", s.kind, id))
	}
	s.seen[id] = struct{}{}
	return nil
}

func (s *idSet) addStories(stories []StoryCreate) error {
	for _, sc := range stories {
		if err := s.add(sc.ID); err != nil {
			return err
		}
	}
	return nil
}

// ValidateStoryCreate checks the required story fields.
func ValidateStoryCreate(sc StoryCreate) error {
	return validateStruct(sc)
}

func validateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	problems := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		problems = append(problems, formatFieldError(fe))
	}
	return invalid(problems...)
}

func formatFieldError(fe validator.FieldError) string {
	// Namespace is "MapCreate.keypoints[0].name"; drop the payload type.
	field := fe.Namespace()
	if i := strings.IndexByte(field, '.'); i >= 0 {
		field = field[i+1:]
	}
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
