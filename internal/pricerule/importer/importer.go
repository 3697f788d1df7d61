package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/smallbiznis/pricerules/internal/pricerule/domain"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

var ErrEmptyDocument = errors.New("empty_import_document")

// Document is the YAML layout accepted by the importer:
//
//	rules:
//	  - name: Summer Sale
//	    rule_type: PROMOTION
//	    calculation_type: DISCOUNT
//	    value: "20"
type Document struct {
	Rules []domain.CreateRequest `yaml:"rules"`
}

type Failure struct {
	Index int
	Name  string
	Err   error
}

type Result struct {
	Created []domain.Response
	Failed  []Failure
}

type Importer struct {
	svc domain.Service
	log *zap.Logger
}

func New(svc domain.Service, log *zap.Logger) *Importer {
	return &Importer{svc: svc, log: log.Named("pricerule.importer")}
}

func (i *Importer) ImportFile(ctx context.Context, path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return i.Import(ctx, f)
}

// Import creates every rule in the document through the service. A rule that
// fails validation is reported and does not stop the rest.
func (i *Importer) Import(ctx context.Context, r io.Reader) (*Result, error) {
	doc, err := Decode(r)
	if err != nil {
		return nil, err
	}

	result := &Result{}
	for idx, req := range doc.Rules {
		created, err := i.svc.Create(ctx, req)
		if err != nil {
			i.log.Warn("rule import failed", zap.Int("index", idx), zap.String("name", req.Name), zap.Error(err))
			result.Failed = append(result.Failed, Failure{Index: idx, Name: req.Name, Err: err})
			continue
		}
		result.Created = append(result.Created, *created)
	}

	i.log.Info("rule import finished",
		zap.Int("created", len(result.Created)),
		zap.Int("failed", len(result.Failed)),
	)
	return result, nil
}

func Decode(r io.Reader) (*Document, error) {
	var doc Document
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptyDocument
		}
		return nil, fmt.Errorf("decode import document: %w", err)
	}
	if len(doc.Rules) == 0 {
		return nil, ErrEmptyDocument
	}
	return &doc, nil
}
