package reporting

import (
	"encoding/xml"
	"fmt"
	"os"
	"time"

	"github.com/spboyer/ltrank/internal/models"
)

// JUnit XML schema types

// JUnitTestSuites is the top-level container.
type JUnitTestSuites struct {
	XMLName    xml.Name         `xml:"testsuites"`
	Tests      int              `xml:"tests,attr"`
	Failures   int              `xml:"failures,attr"`
	Errors     int              `xml:"errors,attr"`
	Time       float64          `xml:"time,attr"`
	TestSuites []JUnitTestSuite `xml:"testsuite"`
}

// JUnitTestSuite maps to one pipeline run.
type JUnitTestSuite struct {
	XMLName    xml.Name        `xml:"testsuite"`
	Name       string          `xml:"name,attr"`
	Tests      int             `xml:"tests,attr"`
	Failures   int             `xml:"failures,attr"`
	Errors     int             `xml:"errors,attr"`
	Skipped    int             `xml:"skipped,attr"`
	Time       float64         `xml:"time,attr"`
	Timestamp  string          `xml:"timestamp,attr"`
	Properties []JUnitProperty `xml:"properties>property,omitempty"`
	TestCases  []JUnitTestCase `xml:"testcase"`
}

// JUnitTestCase maps to one pipeline stage or the quality gate.
type JUnitTestCase struct {
	XMLName   xml.Name      `xml:"testcase"`
	Name      string        `xml:"name,attr"`
	Classname string        `xml:"classname,attr"`
	Time      float64       `xml:"time,attr"`
	Failure   *JUnitFailure `xml:"failure,omitempty"`
	Error     *JUnitError   `xml:"error,omitempty"`
	Skipped   *JUnitSkipped `xml:"skipped,omitempty"`
	SystemOut string        `xml:"system-out,omitempty"`
}

// JUnitFailure represents a quality gate failure.
type JUnitFailure struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Body    string `xml:",chardata"`
}

// JUnitError represents a gate that could not be evaluated.
type JUnitError struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Body    string `xml:",chardata"`
}

// JUnitSkipped marks a test as skipped.
type JUnitSkipped struct {
	Message string `xml:"message,attr,omitempty"`
}

// JUnitProperty is a key-value metadata entry.
type JUnitProperty struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

const junitClass = "ltrank"

// ConvertToJUnit converts a PipelineOutcome to JUnit XML format. Every stage
// becomes a passing test case carrying its metric lines; the quality gate is
// the one case that can fail.
func ConvertToJUnit(outcome *models.PipelineOutcome) *JUnitTestSuites {
	durationSec := float64(outcome.DurationMs) / 1000.0

	suite := JUnitTestSuite{
		Name:      "ltrank " + outcome.Setup.RankerKind,
		Time:      durationSec,
		Timestamp: outcome.Timestamp.Format(time.RFC3339),
		Properties: []JUnitProperty{
			{Name: "run_id", Value: outcome.RunID},
			{Name: "ranker", Value: outcome.Setup.RankerKind},
			{Name: "seed", Value: fmt.Sprintf("%d", outcome.Setup.Seed)},
			{Name: "truncation_level", Value: fmt.Sprintf("%d", outcome.Setup.TruncationLevel)},
		},
	}
	if m, ok := outcome.FinalMetrics(); ok {
		if v, ok := m.NDCGAt(int(outcome.Setup.TruncationLevel)); ok {
			suite.Properties = append(suite.Properties, JUnitProperty{Name: "ndcg", Value: fmt.Sprintf("%.4f", v)})
		}
	}

	for _, s := range outcome.Stages {
		tc := JUnitTestCase{
			Name:      s.Stage,
			Classname: junitClass,
			Time:      float64(s.DurationMs) / 1000.0,
		}
		if s.Metrics != nil {
			dcg, ndcg := FormatMetrics(*s.Metrics)
			tc.SystemOut = dcg + "\n" + ndcg
		}
		suite.TestCases = append(suite.TestCases, tc)
	}
	suite.TestCases = append(suite.TestCases, convertGate(outcome.Gate))

	for _, tc := range suite.TestCases {
		suite.Tests++
		switch {
		case tc.Failure != nil:
			suite.Failures++
		case tc.Error != nil:
			suite.Errors++
		case tc.Skipped != nil:
			suite.Skipped++
		}
	}

	return &JUnitTestSuites{
		Tests:      suite.Tests,
		Failures:   suite.Failures,
		Errors:     suite.Errors,
		Time:       durationSec,
		TestSuites: []JUnitTestSuite{suite},
	}
}

func convertGate(g models.GateOutcome) JUnitTestCase {
	tc := JUnitTestCase{Name: "quality_gate", Classname: junitClass}
	switch g.Status {
	case models.StatusFailed:
		tc.Failure = &JUnitFailure{
			Message: fmt.Sprintf("NDCG@%d=%.4f below %.4f", g.Level, g.Value, g.Threshold),
			Type:    "QualityGateFailure",
		}
	case models.StatusError:
		tc.Error = &JUnitError{
			Message: fmt.Sprintf("NDCG@%d was not computed", g.Level),
			Type:    "QualityGateError",
		}
	case models.StatusSkipped, "":
		tc.Skipped = &JUnitSkipped{Message: "no minimum NDCG configured"}
	}
	return tc
}

// WriteJUnitXML writes JUnit XML to the specified file path.
func WriteJUnitXML(outcome *models.PipelineOutcome, path string) error {
	suites := ConvertToJUnit(outcome)

	data, err := xml.MarshalIndent(suites, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JUnit XML: %w", err)
	}

	output := append([]byte(xml.Header), data...)
	return os.WriteFile(path, output, 0644)
}
