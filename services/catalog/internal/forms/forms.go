// Package forms validates admin and viewer payloads at the HTTP boundary
// and reports failures per field, keyed by JSON path.
package forms

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"

	"github.com/example/animestream/internal/platform/apperr"
	"github.com/example/animestream/internal/platform/normalize"
	"github.com/example/animestream/services/catalog/internal/anime"
)

// MinYear is the earliest accepted release year; the latest is ten years
// after the current one.
const MinYear = 1900

// AnimeForm is the create/edit form for a title.
type AnimeForm struct {
	Title           *string               `json:"title" validate:"required,notblank,max=300"`
	Synopsis        *string               `json:"synopsis" validate:"required,min=10"`
	CoverImage      *string               `json:"coverImage" validate:"required,url"`
	BannerImage     *string               `json:"bannerImage" validate:"omitempty,optional_url"`
	TrailerURL      *string               `json:"trailerUrl" validate:"omitempty,optional_url"`
	DownloadPageURL *string               `json:"downloadPageUrl" validate:"omitempty,optional_url"`
	Year            normalize.Number      `json:"year" validate:"omitempty,year_range"`
	Genres          *[]string             `json:"genres" validate:"required,min=1,dive,required"`
	Status          *string               `json:"status" validate:"omitempty,oneof=Ongoing Completed Upcoming Unknown"`
	Type            *string               `json:"type" validate:"omitempty,oneof=TV Movie OVA Special Unknown"`
	Popularity      normalize.Number      `json:"popularity" validate:"omitempty,gte=0"`
	Rating          normalize.Number      `json:"rating" validate:"omitempty,gte=0,lte=10"`
	Featured        *bool                 `json:"featured"`
	MalID           normalize.Number      `json:"malId" validate:"omitempty,nonneg_int"`
	Episodes        *[]EpisodeForm        `json:"episodes" validate:"omitempty,dive"`
}

// EpisodeForm is a whole episode: one being appended, or one element of
// the episode list on a title form. Unlike a single-episode patch it must
// carry an episode number.
type EpisodeForm struct {
	ID            string              `json:"id"`
	Title         *string             `json:"title"`
	EpisodeNumber normalize.Number    `json:"episodeNumber" validate:"nonneg_int"`
	SeasonNumber  normalize.Number    `json:"seasonNumber" validate:"omitempty,nonneg_int"`
	Thumbnail     *string             `json:"thumbnail" validate:"omitempty,optional_url"`
	Duration      normalize.Number    `json:"duration" validate:"omitempty,gte=0"`
	Synopsis      *string             `json:"synopsis"`
	AirDate       *string             `json:"airDate"`
	Sources       []anime.SourceInput `json:"sources" validate:"dive"`
}

func (f EpisodeForm) Input() anime.EpisodeInput {
	return anime.EpisodeInput{
		ID:            f.ID,
		Title:         f.Title,
		EpisodeNumber: f.EpisodeNumber,
		SeasonNumber:  f.SeasonNumber,
		Thumbnail:     f.Thumbnail,
		Duration:      f.Duration,
		Synopsis:      f.Synopsis,
		AirDate:       f.AirDate,
		Sources:       f.Sources,
	}
}

// episodeList lets a patch that replaces the episode list validate every
// element; partial validation stops at the top-level field.
type episodeList struct {
	Episodes []EpisodeForm `json:"episodes" validate:"dive"`
}

// Input converts the validated form for the content layer.
func (f AnimeForm) Input() anime.AnimeInput {
	var episodes *[]anime.EpisodeInput
	if f.Episodes != nil {
		list := make([]anime.EpisodeInput, len(*f.Episodes))
		for i, ep := range *f.Episodes {
			list[i] = ep.Input()
		}
		episodes = &list
	}
	return anime.AnimeInput{
		Title:           f.Title,
		Synopsis:        f.Synopsis,
		CoverImage:      f.CoverImage,
		BannerImage:     f.BannerImage,
		TrailerURL:      f.TrailerURL,
		DownloadPageURL: f.DownloadPageURL,
		Year:            f.Year,
		Genres:          f.Genres,
		Status:          f.Status,
		Type:            f.Type,
		Popularity:      f.Popularity,
		Rating:          f.Rating,
		Featured:        f.Featured,
		MalID:           f.MalID,
		Episodes:        episodes,
	}
}

var (
	once     sync.Once
	validate *validator.Validate
)

func instance() *validator.Validate {
	once.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return f.Name
			}
			return name
		})
		v.RegisterCustomTypeFunc(numberValue, normalize.Number{})
		_ = v.RegisterValidation("notblank", validators.NotBlank)
		_ = v.RegisterValidation("year_range", yearRange)
		_ = v.RegisterValidation("nonneg_int", nonNegInt)
		_ = v.RegisterValidation("optional_url", optionalURL)
		validate = v
	})
	return validate
}

// numberValue exposes a Number to the validator as its float value, or as
// absent when it is not a finite number.
func numberValue(field reflect.Value) any {
	n, ok := field.Interface().(normalize.Number)
	if !ok || !n.Valid {
		return nil
	}
	return n.Value
}

func yearRange(fl validator.FieldLevel) bool {
	y := fl.Field().Float()
	return y == float64(int(y)) && y >= MinYear && int(y) <= time.Now().Year()+10
}

func nonNegInt(fl validator.FieldLevel) bool {
	n := fl.Field().Float()
	return n >= 0 && n == float64(int64(n))
}

// optionalURL accepts blank text, which is stored as null, or an absolute
// URL.
func optionalURL(fl validator.FieldLevel) bool {
	s := strings.TrimSpace(fl.Field().String())
	if s == "" {
		return true
	}
	u, err := url.Parse(s)
	return err == nil && u.Scheme != "" && u.Host != ""
}

// Validate checks every rule on v.
func Validate(v any) error {
	return translate(instance().Struct(v))
}

// ValidatePartial checks only the named top-level fields (struct field
// names), for patches where absent fields keep their stored value. A title
// patch carrying episodes has each episode checked in full.
func ValidatePartial(v any, fields ...string) error {
	if len(fields) == 0 {
		return nil
	}
	errs := []error{instance().StructPartial(v, fields...)}
	if f, ok := v.(AnimeForm); ok && f.Episodes != nil && slices.Contains(fields, "Episodes") {
		errs = append(errs, instance().Struct(episodeList{Episodes: *f.Episodes}))
	}
	return translate(errs...)
}

// PresentFields lists the struct fields of a patch that were supplied: non-nil
// pointers and slices, and Numbers whose key was present.
func PresentFields(v any) []string {
	rv := reflect.Indirect(reflect.ValueOf(v))
	if rv.Kind() != reflect.Struct {
		return nil
	}
	var out []string
	for i := 0; i < rv.NumField(); i++ {
		f := rv.Field(i)
		name := rv.Type().Field(i).Name
		switch f.Kind() {
		case reflect.Pointer, reflect.Slice, reflect.Map:
			if !f.IsNil() {
				out = append(out, name)
			}
		case reflect.Struct:
			if n, ok := f.Interface().(normalize.Number); ok && n.Set {
				out = append(out, name)
			}
		}
	}
	return out
}

func translate(errs ...error) error {
	fields := map[string]string{}
	for _, err := range errs {
		if err == nil {
			continue
		}
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return apperr.InvalidArgument(err.Error(), nil)
		}
		for _, fe := range verrs {
			fields[fieldPath(fe.Namespace())] = describe(fe)
		}
	}
	if len(fields) == 0 {
		return nil
	}
	return apperr.InvalidArgument("validation failed", fields)
}

// fieldPath drops the root struct name: "AnimeForm.episodes[0].sources[1].url"
// becomes "episodes[0].sources[1].url".
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "notblank":
		return "is required"
	case "url", "optional_url":
		return "must be a valid URL"
	case "min":
		if fe.Kind() == reflect.Slice {
			return "must have at least " + fe.Param() + " item(s)"
		}
		return "must be at least " + fe.Param() + " characters"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	case "year_range":
		return fmt.Sprintf("must be between %d and %d", MinYear, time.Now().Year()+10)
	case "nonneg_int":
		if fe.Kind() == reflect.Invalid {
			return "is required"
		}
		return "must be a non-negative integer"
	}
	return "is invalid"
}
