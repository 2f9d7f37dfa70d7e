package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
)

// inputRecord is the column form of an Input.
type inputRecord struct {
	Kind       InputKind `json:"kind"`
	Options    []string  `json:"options,omitempty"`
	AllowOther bool      `json:"allow_other,omitempty"`
	Sections   []Section `json:"sections,omitempty"`
}

func encodeInput(in Input) (sql.NullString, error) {
	if in == nil {
		return sql.NullString{}, nil
	}
	rec := inputRecord{Kind: in.Kind()}
	switch v := in.(type) {
	case OptionsInput:
		rec.Options = v.Options
		rec.AllowOther = v.AllowOther
	case MixedInput:
		rec.Sections = v.Sections
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func decodeInput(raw string) (Input, error) {
	var rec inputRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, err
	}
	switch rec.Kind {
	case KindOptions:
		return OptionsInput{Options: rec.Options, AllowOther: rec.AllowOther}, nil
	case KindText:
		return TextInput{}, nil
	case KindMixed:
		return MixedInput{Sections: rec.Sections}, nil
	}
	return nil, fmt.Errorf("unknown input kind %q", rec.Kind)
}
