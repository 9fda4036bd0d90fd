package retools

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// TokenRule is one token definition in a YAML rules file.
type TokenRule struct {
	Name      string            `yaml:"name"`
	Template  string            `yaml:"template"`
	Supertype string            `yaml:"supertype"`
	Fields    []FieldRule       `yaml:"fields"`
	Aliases   map[string]string `yaml:"aliases"`
}

// FieldRule is one field of a TokenRule.
type FieldRule struct {
	Name     string      `yaml:"name"`
	Type     string      `yaml:"type"` // bool|int|float|decimal|date|datetime|time|uuid|text|token|list
	Token    string      `yaml:"token"`
	Elem     *FieldRule  `yaml:"elem"`
	Pattern  string      `yaml:"pattern"`
	Optional bool        `yaml:"optional"`
	Repeat   *RepeatRule `yaml:"repeat"`
}

// RepeatRule configures a list field in a rules file.
type RepeatRule struct {
	Separator string `yaml:"separator"`
	Required  bool   `yaml:"required"`
	Empty     string `yaml:"empty"`
}

// RulesConfig is the top-level shape of a rules file: builder-level aliases
// plus token definitions.
type RulesConfig struct {
	Aliases map[string]string `yaml:"aliases"`
	Tokens  []TokenRule       `yaml:"tokens"`
}

// LoadRules reads a rules file.
func LoadRules(path string) (RulesConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RulesConfig{}, err
	}
	var cfg RulesConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return RulesConfig{}, err
	}
	return cfg, nil
}

// RegisterRules applies a rules file to the builder: aliases first, then
// every token in file order, so a rule may reference tokens defined above it.
func RegisterRules(b *Builder, cfg RulesConfig) error {
	for name, tmpl := range cfg.Aliases {
		b.Alias(name, tmpl)
	}
	for _, rule := range cfg.Tokens {
		def, err := rule.TokenDef()
		if err != nil {
			return err
		}
		if err := b.Register(def); err != nil {
			return err
		}
	}
	return nil
}

// TokenDef converts the YAML shape into a TokenDef.
func (r TokenRule) TokenDef() (TokenDef, error) {
	def := TokenDef{Name: r.Name, Template: r.Template, Supertype: r.Supertype, Aliases: r.Aliases}
	for _, fr := range r.Fields {
		f, err := fr.field()
		if err != nil {
			return TokenDef{}, fmt.Errorf("token %s: %w", r.Name, err)
		}
		def.Fields = append(def.Fields, f)
	}
	return def, nil
}

func (r FieldRule) field() (Field, error) {
	t, err := r.fieldType()
	if err != nil {
		return Field{}, fmt.Errorf("field %s: %w", r.Name, err)
	}
	f := Field{Name: r.Name, Type: t, Pattern: r.Pattern, Optional: r.Optional}
	if r.Repeat != nil {
		f.Repeat = &Repeat{
			Separator: r.Repeat.Separator,
			Required:  r.Repeat.Required,
			Empty:     r.Repeat.Empty,
		}
	}
	return f, nil
}

func (r FieldRule) fieldType() (FieldType, error) {
	switch r.Type {
	case "bool":
		return FieldType{Kind: KindBool}, nil
	case "int":
		return FieldType{Kind: KindInt}, nil
	case "float":
		return FieldType{Kind: KindFloat}, nil
	case "decimal":
		return FieldType{Kind: KindDecimal}, nil
	case "date":
		return FieldType{Kind: KindDate}, nil
	case "datetime":
		return FieldType{Kind: KindDateTime}, nil
	case "time":
		return FieldType{Kind: KindTime}, nil
	case "uuid":
		return FieldType{Kind: KindUUID}, nil
	case "text", "":
		return FieldType{Kind: KindText}, nil
	case "token":
		if r.Token == "" {
			return FieldType{}, fmt.Errorf("type token needs a token name")
		}
		return TokenType(r.Token), nil
	case "list":
		if r.Elem == nil {
			return FieldType{}, fmt.Errorf("type list needs an elem")
		}
		elem, err := r.Elem.fieldType()
		if err != nil {
			return FieldType{}, err
		}
		return ListType(elem), nil
	default:
		return FieldType{}, fmt.Errorf("unknown field type %q", r.Type)
	}
}
