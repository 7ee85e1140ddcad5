// Package pubchem looks up compound properties by name in the PubChem PUG
// REST service, to prefill chemical records.
package pubchem

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/MiRedo238/Chemsphere-sub000/internal/config"
)

// ErrNotFound is returned when PubChem has no compound for the name.
var ErrNotFound = errors.New("compound not found")

// ErrDisabled is returned by a client built from a disabled config.
var ErrDisabled = errors.New("chemical lookup is disabled")

const propertyPath = "/rest/pug/compound/name/{name}/property/{props}/JSON"

const properties = "Title,MolecularFormula,IUPACName,IsomericSMILES,CanonicalSMILES,SMILES"

// Compound is the subset of PubChem properties the inventory uses.
type Compound struct {
	Name             string `json:"name"`
	MolecularFormula string `json:"molecular_formula"`
	IUPACName        string `json:"iupac_name"`
	SMILES           string `json:"smiles"`
}

type property struct {
	Title            string `json:"Title"`
	MolecularFormula string `json:"MolecularFormula"`
	IUPACName        string `json:"IUPACName"`
	IsomericSMILES   string `json:"IsomericSMILES"`
	CanonicalSMILES  string `json:"CanonicalSMILES"`
	SMILES           string `json:"SMILES"`
}

type propertyResponse struct {
	PropertyTable struct {
		Properties []property `json:"Properties"`
	} `json:"PropertyTable"`
}

// Client queries PubChem.
type Client struct {
	client  *resty.Client
	enabled bool
}

// NewClient builds a client from config. A disabled config yields a client
// whose lookups return ErrDisabled.
func NewClient(cfg config.PubChemConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		enabled: cfg.Enabled,
		client: resty.New().
			SetTimeout(timeout).
			SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
			SetHeader("Accept", "application/json"),
	}
}

// Enabled reports whether lookups are allowed.
func (c *Client) Enabled() bool {
	return c.enabled
}

// Lookup returns the first compound PubChem matches for name.
func (c *Client) Lookup(ctx context.Context, name string) (*Compound, error) {
	if !c.enabled {
		return nil, ErrDisabled
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("compound name is required")
	}

	result := &propertyResponse{}
	res, err := c.client.R().
		SetContext(ctx).
		SetPathParam("name", name).
		SetRawPathParam("props", properties).
		SetResult(result).
		Get(propertyPath)
	if err != nil {
		return nil, fmt.Errorf("pubchem request failed: %w", err)
	}

	switch res.StatusCode() {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, ErrNotFound
	default:
		slog.Warn("pubchem lookup failed", "name", name, "status", res.StatusCode())
		return nil, fmt.Errorf("pubchem returned status %d", res.StatusCode())
	}

	if len(result.PropertyTable.Properties) == 0 {
		return nil, ErrNotFound
	}
	p := result.PropertyTable.Properties[0]

	out := &Compound{
		Name:             p.Title,
		MolecularFormula: p.MolecularFormula,
		IUPACName:        p.IUPACName,
		SMILES:           p.IsomericSMILES,
	}
	if out.Name == "" {
		out.Name = p.IUPACName
	}
	if out.SMILES == "" {
		out.SMILES = p.CanonicalSMILES
	}
	if out.SMILES == "" {
		out.SMILES = p.SMILES
	}
	return out, nil
}
