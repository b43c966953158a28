// Package input loads company fixtures: the financials, business-model
// factors, assessment responses, tasks and signals for one or more
// companies, from YAML or JSON files.
package input

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/readiness-engine/internal/model"
	"github.com/sells-group/readiness-engine/internal/priority"
	"github.com/sells-group/readiness-engine/internal/scoring"
	"github.com/sells-group/readiness-engine/internal/valuation"
)

// Company is everything the engine needs to assess one business.
//
// Multiples and IndustryAvgMargin override the NAICS benchmark lookup when
// set. Weights is an optional per-company category weight override.
type Company struct {
	ID                string                     `json:"company_id" yaml:"company_id"`
	Name              string                     `json:"name" yaml:"name"`
	NAICS             string                     `json:"naics" yaml:"naics"`
	Financials        valuation.Financials       `json:"financials" yaml:"financials"`
	CoreFactors       scoring.CoreFactors        `json:"core_factors" yaml:"core_factors"`
	Responses         []model.AssessmentResponse `json:"responses,omitempty" yaml:"responses,omitempty"`
	Tasks             []model.Task               `json:"tasks,omitempty" yaml:"tasks,omitempty"`
	Signals           []model.Signal             `json:"signals,omitempty" yaml:"signals,omitempty"`
	TopCustomerShare  *float64                   `json:"top_customer_share,omitempty" yaml:"top_customer_share,omitempty"`
	DLOMRate          *decimal.Decimal           `json:"dlom_rate,omitempty" yaml:"dlom_rate,omitempty"`
	Multiples         *valuation.Multiples       `json:"multiples,omitempty" yaml:"multiples,omitempty"`
	IndustryAvgMargin *decimal.Decimal           `json:"industry_avg_margin,omitempty" yaml:"industry_avg_margin,omitempty"`
	Weights           map[model.Category]float64 `json:"weights,omitempty" yaml:"weights,omitempty"`
}

type companyFile struct {
	Companies []Company `json:"companies" yaml:"companies"`
}

// LoadFile reads a fixture. The file holds either a single company or a
// top-level "companies" list. The format follows the extension; anything
// other than .json is parsed as YAML.
func LoadFile(path string) ([]Company, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "input: read company fixture")
	}

	companies, err := Parse(data, strings.EqualFold(filepath.Ext(path), ".json"))
	if err != nil {
		return nil, eris.Wrapf(err, "input: %s", path)
	}
	return companies, nil
}

// Parse decodes fixture bytes and normalizes every company.
func Parse(data []byte, isJSON bool) ([]Company, error) {
	unmarshal := yaml.Unmarshal
	if isJSON {
		unmarshal = json.Unmarshal
	}

	var f companyFile
	if err := unmarshal(data, &f); err != nil {
		return nil, eris.Wrap(err, "input: unmarshal company fixture")
	}
	if len(f.Companies) == 0 {
		var c Company
		if err := unmarshal(data, &c); err != nil {
			return nil, eris.Wrap(err, "input: unmarshal company fixture")
		}
		f.Companies = []Company{c}
	}

	seen := make(map[string]bool, len(f.Companies))
	for i := range f.Companies {
		c := &f.Companies[i]
		if err := c.Normalize(); err != nil {
			return nil, err
		}
		if seen[c.ID] {
			return nil, eris.Errorf("input: duplicate company_id %q", c.ID)
		}
		seen[c.ID] = true
	}
	return f.Companies, nil
}

// Normalize fills defaults and rejects records the engine cannot use.
// Tasks without a difficulty get one from their hours estimate or effort
// label; signals inherit the company ID and start OPEN.
func (c *Company) Normalize() error {
	c.ID = strings.TrimSpace(c.ID)
	if c.ID == "" {
		return eris.New("input: company_id is required")
	}
	if c.Financials.Revenue.IsNegative() {
		return eris.Errorf("input: company %s: revenue must be >= 0", c.ID)
	}
	if c.TopCustomerShare != nil && (*c.TopCustomerShare < 0 || *c.TopCustomerShare > 1) {
		return eris.Errorf("input: company %s: top_customer_share must be between 0 and 1", c.ID)
	}
	if c.Multiples != nil {
		if err := c.Multiples.Validate(); err != nil {
			return eris.Wrapf(err, "input: company %s", c.ID)
		}
	}
	if len(c.Weights) > 0 {
		if err := scoring.Weights(c.Weights).Validate(); err != nil {
			return eris.Wrapf(err, "input: company %s", c.ID)
		}
	}

	if err := NormalizeTasks(c.Tasks); err != nil {
		return eris.Wrapf(err, "input: company %s", c.ID)
	}

	for i := range c.Signals {
		s := &c.Signals[i]
		if s.CompanyID == "" {
			s.CompanyID = c.ID
		}
		if s.ResolutionStatus == "" {
			s.ResolutionStatus = model.StatusOpen
		}
		if err := s.Validate(); err != nil {
			return eris.Wrapf(err, "input: company %s: signal %s", c.ID, s.ID)
		}
	}
	return nil
}

// NormalizeTasks derives missing difficulty levels from hours or effort and
// defaults status to PENDING. Every task needs an ID and an impact.
func NormalizeTasks(tasks []model.Task) error {
	for i := range tasks {
		t := &tasks[i]
		if t.ID == "" {
			return eris.Errorf("input: task %d has no id", i)
		}
		if t.Difficulty == "" {
			d, err := priority.EffortToDifficultyLevel(t.EstimatedHours, t.Effort)
			if err != nil {
				return eris.Wrapf(err, "input: task %s", t.ID)
			}
			t.Difficulty = d
		}
		if t.Impact == "" {
			return eris.Wrapf(model.ErrUnknownImpact, "input: task %s has no impact", t.ID)
		}
		if t.Status == "" {
			t.Status = model.TaskPending
		}
	}
	return nil
}

// CompanyWeights returns the per-company override, or nil.
func (c *Company) CompanyWeights() scoring.Weights {
	if len(c.Weights) == 0 {
		return nil
	}
	return scoring.Weights(c.Weights).Clone()
}

type taskFile struct {
	Tasks []model.Task `json:"tasks" yaml:"tasks"`
}

// LoadTasks reads a standalone task list from a top-level "tasks" key and
// normalizes it.
func LoadTasks(path string) ([]model.Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "input: read task list")
	}
	var f taskFile
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(data, &f)
	} else {
		err = yaml.Unmarshal(data, &f)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "input: unmarshal %s", path)
	}
	if err := NormalizeTasks(f.Tasks); err != nil {
		return nil, eris.Wrapf(err, "input: %s", path)
	}
	return f.Tasks, nil
}
