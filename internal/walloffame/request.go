package walloffame

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	pkgerrors "deligma/pkg/errors"
	"deligma/pkg/validators"
)

// Field aliases accepted on the wire. The first name is the canonical one.
var (
	nameKeys         = []string{"nombre", "name"}
	descriptionKeys  = []string{"descripcion", "description"}
	orderKeys        = []string{"orden", "displayOrder"}
	activeKeys       = []string{"activo", "active"}
	achievementsKeys = []string{"logros", "achievements"}
)

// AchievementInput is one inbound achievement: either a bare string or an
// object carrying the text under "logro" (or "text").
type AchievementInput struct {
	Text       string
	Structured bool
}

func (a *AchievementInput) UnmarshalJSON(b []byte) error {
	trimmed := bytes.TrimSpace(b)
	if bytes.Equal(trimmed, []byte("null")) {
		*a = AchievementInput{}
		return nil
	}
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*a = AchievementInput{Text: s}
		return nil
	}

	var obj struct {
		Logro *string `json:"logro"`
		Text  *string `json:"text"`
	}
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return fmt.Errorf("achievement must be a string or an object: %w", err)
	}
	*a = AchievementInput{Structured: true}
	switch {
	case obj.Logro != nil:
		a.Text = *obj.Logro
	case obj.Text != nil:
		a.Text = *obj.Text
	}
	return nil
}

func resolveAchievements(in []AchievementInput) []string {
	out := make([]string, len(in))
	for i, a := range in {
		out[i] = a.Text
	}
	return out
}

// formFields is a request body flattened to field name -> raw value. Values
// are strings or []string for form bodies and native JSON values otherwise.
type formFields map[string]any

func (f formFields) lookup(keys []string) (any, bool) {
	for _, k := range keys {
		if v, ok := f[k]; ok {
			return v, true
		}
	}
	return nil, false
}

// achievements also honours the bracketed form convention, where every
// "logros[]" value is one plain text.
func (f formFields) achievements() (any, bool) {
	if v, ok := f["logros[]"]; ok {
		if s, isText := v.(string); isText {
			return []string{s}, true
		}
		return v, true
	}
	return f.lookup(achievementsKeys)
}

// readFields decodes a JSON, urlencoded or multipart body. Multipart bodies
// are expected to be parsed already by the upload middleware.
func readFields(r *http.Request) (formFields, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	switch mediaType {
	case "application/json":
		fields := formFields{}
		dec := json.NewDecoder(r.Body)
		dec.UseNumber()
		if err := dec.Decode(&fields); err != nil {
			if err == io.EOF {
				return fields, nil
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "Cuerpo de la solicitud inválido")
		}
		return fields, nil
	case "multipart/form-data", "application/x-www-form-urlencoded":
		if r.PostForm == nil {
			if err := r.ParseForm(); err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "Formulario inválido")
			}
		}
		fields := formFields{}
		for k, vs := range r.PostForm {
			if len(vs) == 1 {
				fields[k] = vs[0]
				continue
			}
			fields[k] = vs
		}
		return fields, nil
	default:
		return formFields{}, nil
	}
}

func coerceText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []string:
		if len(t) == 0 {
			return ""
		}
		return t[0]
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

// coerceBool treats text "true" and "1" as true and any other text as false.
func coerceBool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case json.Number:
		return t.String() == "1"
	case float64:
		return t == 1
	default:
		s := coerceText(v)
		return s == "true" || s == "1"
	}
}

// coerceInt reads the leading integer of text values; non-numeric text is 0.
func coerceInt(v any) int {
	switch t := v.(type) {
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return int(n)
		}
		if f, err := t.Float64(); err == nil {
			return int(f)
		}
		return 0
	case float64:
		return int(t)
	case int:
		return t
	case bool:
		return 0
	default:
		return leadingInt(coerceText(v))
	}
}

func leadingInt(s string) int {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0
	}
	return n
}

var errBlankAchievements = errors.New("achievements text is empty")

// parseAchievements accepts a JSON text blob, a native JSON array or
// repeated form values.
func parseAchievements(v any) ([]string, error) {
	var raw []byte
	switch t := v.(type) {
	case nil:
		return []string{}, nil
	case string:
		if strings.TrimSpace(t) == "" {
			return nil, errBlankAchievements
		}
		raw = []byte(t)
	case []string:
		return append([]string{}, t...), nil
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return nil, err
		}
		raw = b
	}

	var items []AchievementInput
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, err
	}
	return resolveAchievements(items), nil
}

// createInput shapes a create request. Unparseable achievements become an
// empty list.
func createInput(fields formFields, uploaded string) (MemberInput, error) {
	var in MemberInput

	if v, ok := fields.lookup(nameKeys); ok {
		in.Name = coerceText(v)
	}
	if _, err := checkName(in.Name); err != nil {
		return MemberInput{}, err
	}
	if v, ok := fields.lookup(descriptionKeys); ok {
		in.Description = coerceText(v)
	}
	if v, ok := fields.lookup(orderKeys); ok {
		in.DisplayOrder = coerceInt(v)
	}
	if v, ok := fields.lookup(activeKeys); ok {
		active := coerceBool(v)
		in.Active = &active
	}
	in.Achievements = []string{}
	if v, ok := fields.achievements(); ok {
		if list, err := parseAchievements(v); err == nil {
			in.Achievements = list
		}
	}
	if uploaded != "" {
		in.Image = &uploaded
	}
	return in, nil
}

// updatePatch shapes an update request into a sparse patch. Unparseable
// achievements drop the field so the stored list is kept.
func updatePatch(fields formFields, uploaded string) MemberPatch {
	var p MemberPatch

	if v, ok := fields.lookup(nameKeys); ok {
		p.Name = Some(coerceText(v))
	}
	if v, ok := fields.lookup(descriptionKeys); ok {
		p.Description = Some(coerceText(v))
	}
	if v, ok := fields.lookup(orderKeys); ok {
		p.DisplayOrder = Some(coerceInt(v))
	}
	if v, ok := fields.lookup(activeKeys); ok {
		p.Active = Some(coerceBool(v))
	}
	if v, ok := fields.achievements(); ok {
		if list, err := parseAchievements(v); err == nil {
			p.Achievements = Some(list)
		}
	}
	if uploaded != "" {
		p.Image = Some(&uploaded)
	}
	return p
}

type reorderEntry struct {
	ID    string          `json:"id" validate:"required,uuid"`
	Order json.RawMessage `json:"orden"`
}

// parseReorder accepts {"ordenamiento": [...]} or a bare array of {id, orden}.
func parseReorder(body io.Reader) ([]ReorderAssignment, error) {
	var raw json.RawMessage
	if err := json.NewDecoder(body).Decode(&raw); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "Se requiere un arreglo de ordenamiento")
	}

	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '{' {
		var wrapper struct {
			Ordering json.RawMessage `json:"ordenamiento"`
		}
		if err := json.Unmarshal(raw, &wrapper); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "Se requiere un arreglo de ordenamiento")
		}
		raw = bytes.TrimSpace(wrapper.Ordering)
	}
	if len(raw) == 0 || raw[0] != '[' {
		return nil, pkgerrors.Validation("Se requiere un arreglo de ordenamiento")
	}

	var entries []reorderEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "Se requiere un arreglo de ordenamiento")
	}

	out := make([]ReorderAssignment, 0, len(entries))
	for _, e := range entries {
		if err := validators.Struct(e); err != nil {
			return nil, err
		}
		id, err := uuid.Parse(e.ID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "id no es válido")
		}
		out = append(out, ReorderAssignment{ID: id, DisplayOrder: coerceInt(decodeLoose(e.Order))})
	}
	return out, nil
}

// decodeLoose turns a raw JSON scalar into the value coerceInt understands.
func decodeLoose(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil
	}
	return v
}
