package contract

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/syssam/stackgen"
)

// document is the YAML form of a contract-bearing fragment body:
//
//	contracts:
//	  - name: User
//	    description: An account known to the server.
//	    fields:
//	      - {name: id, type: id}
//	      - {name: email, type: string}
//	      - {name: sessions, type: Session, list: true, optional: true}
//
// A type that is not a semantic type names a referenced contract.
type document struct {
	Contracts []struct {
		Name        string `yaml:"name"`
		Description string `yaml:"description"`
		Fields      []struct {
			Name        string `yaml:"name"`
			Type        string `yaml:"type"`
			List        bool   `yaml:"list"`
			Optional    bool   `yaml:"optional"`
			Description string `yaml:"description"`
		} `yaml:"fields"`
	} `yaml:"contracts"`
}

// Decode parses the contracts declared by fragment. Unknown keys are
// rejected so that typos do not silently drop fields.
func Decode(fragment string, data []byte) ([]*Contract, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var doc document
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, stackgen.NewSyncError("", fmt.Sprintf("decode fragment %q", fragment), err)
	}
	contracts := make([]*Contract, 0, len(doc.Contracts))
	for _, dc := range doc.Contracts {
		c := &Contract{
			Name:        dc.Name,
			Description: oneLine(dc.Description),
			Fragment:    fragment,
			Fields:      make([]Field, 0, len(dc.Fields)),
		}
		for _, df := range dc.Fields {
			f := Field{
				Name:        df.Name,
				List:        df.List,
				Optional:    df.Optional,
				Description: oneLine(df.Description),
			}
			switch t := Type(df.Type); {
			case t == "":
				return nil, stackgen.NewSyncError(c.Name, fmt.Sprintf("field %q has no type", df.Name), nil)
			case t == Ref:
				return nil, stackgen.NewSyncError(c.Name, fmt.Sprintf("field %q: name the referenced contract as its type", df.Name), nil)
			case t.Valid():
				f.Type = t
			default:
				f.Type, f.Ref = Ref, df.Type
			}
			c.Fields = append(c.Fields, f)
		}
		contracts = append(contracts, c)
	}
	return contracts, nil
}

// oneLine collapses whitespace so that descriptions fit in line comments.
func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
