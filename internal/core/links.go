package core

import (
	"encoding/json"

	"github.com/google/uuid"

	"lineagecore/internal/metrics"
	"lineagecore/pkg/domain"
)

// decodeLinks reports whether body is a links document, identified by a
// top-level "links" array. Non-JSON bodies and JSON without that key are not
// links documents.
func decodeLinks(body []byte) (LinksDocument, bool) {
	if len(body) == 0 {
		return LinksDocument{}, false
	}
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(body, &probe); err != nil {
		return LinksDocument{}, false
	}
	raw, ok := probe["links"]
	if !ok {
		return LinksDocument{}, false
	}
	var records []LinkRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return LinksDocument{}, false
	}
	return LinksDocument{Links: records}, true
}

// applyLinks records process-file participation for every well-formed link
// record and derives process-process edges from shared files. Malformed
// records are skipped so one bad entry cannot poison the rest of the bundle.
func (s *Service) applyLinks(tx Tx, bundleFQID string, doc LinksDocument) error {
	for _, rec := range doc.Links {
		if err := uuid.Validate(rec.Process); err != nil {
			metrics.MalformedLinkRecords.Inc()
			s.log.Warnw("skipping malformed link record",
				"bundle_fqid", bundleFQID, "process", rec.Process, "error", err)
			continue
		}
		if err := s.applyLinkRecord(tx, rec); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) applyLinkRecord(tx Tx, rec LinkRecord) error {
	for _, fileUUID := range rec.Inputs {
		if err := tx.LinkProcessFile(rec.Process, fileUUID, domain.ConnectionInput); err != nil {
			return err
		}
	}
	for _, fileUUID := range rec.Outputs {
		if err := tx.LinkProcessFile(rec.Process, fileUUID, domain.ConnectionOutput); err != nil {
			return err
		}
	}
	for _, fileUUID := range rec.Protocols {
		if err := tx.LinkProcessFile(rec.Process, fileUUID, domain.ConnectionProtocol); err != nil {
			return err
		}
	}

	// A process that produced one of this record's inputs is a parent; a
	// process that consumes one of its outputs is a child.
	parents, err := tx.ProcessesForFiles(rec.Inputs, domain.ConnectionOutput)
	if err != nil {
		return err
	}
	for _, parent := range parents {
		if err := tx.RecordProcessEdge(parent, rec.Process); err != nil {
			return err
		}
		metrics.EdgesDerived.Inc()
	}
	children, err := tx.ProcessesForFiles(rec.Outputs, domain.ConnectionInput)
	if err != nil {
		return err
	}
	for _, child := range children {
		if err := tx.RecordProcessEdge(rec.Process, child); err != nil {
			return err
		}
		metrics.EdgesDerived.Inc()
	}
	return nil
}
