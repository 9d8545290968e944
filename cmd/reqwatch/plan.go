package main

import (
	"errors"
	"fmt"
	"gopkg.in/yaml.v3"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

var ErrInvalidPlan = errors.New("invalid plan")

// Plan is a set of requests read from a YAML file by the run command.
type Plan struct {
	Requests []PlanRequest `yaml:"requests"`
}

type PlanRequest struct {
	Name    string            `yaml:"name"`
	Method  string            `yaml:"method"`
	URL     string            `yaml:"url"`
	Headers map[string]string `yaml:"headers"`
	Body    string            `yaml:"body"`
	Timeout time.Duration     `yaml:"timeout"`
}

func (r PlanRequest) spec() requestSpec {
	spec := requestSpec{
		Label:   r.Name,
		Method:  r.Method,
		URL:     r.URL,
		Timeout: r.Timeout,
	}
	for name, value := range r.Headers {
		spec.Headers = append(spec.Headers, [2]string{name, value})
	}
	if len(r.Body) > 0 {
		spec.Body = r.Body
	}
	return spec
}

func loadPlan(path string) (*Plan, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPlan, err)
	}
	defer func() {
		_ = f.Close()
	}()
	return readPlan(f)
}

func readPlan(r io.Reader) (*Plan, error) {
	var plan Plan
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&plan); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: no requests", ErrInvalidPlan)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidPlan, err)
	}
	if len(plan.Requests) == 0 {
		return nil, fmt.Errorf("%w: no requests", ErrInvalidPlan)
	}

	var errs []error
	for i := range plan.Requests {
		req := &plan.Requests[i]
		if len(req.Name) == 0 {
			req.Name = fmt.Sprintf("request %d", i+1)
		}
		if len(strings.TrimSpace(req.Method)) == 0 {
			req.Method = http.MethodGet
		}
		if len(req.URL) == 0 {
			errs = append(errs, fmt.Errorf("%w: %s has no url", ErrInvalidPlan, req.Name))
		}
		if req.Timeout < 0 {
			errs = append(errs, fmt.Errorf("%w: %s has a negative timeout", ErrInvalidPlan, req.Name))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return &plan, nil
}
