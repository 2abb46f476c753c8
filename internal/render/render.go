// Package render emits instructional Excel workbooks for generated VBA
// artifacts. Macros cannot be injected into an .xlsx directly, so each
// workbook carries step-by-step instructions alongside the payload.
package render

import (
	"bytes"
	"fmt"
	"regexp"

	"github.com/xuri/excelize/v2"
)

// Operation selects the kind of workbook to emit.
type Operation string

const (
	// OpEmitCode renders the VBA source with editor instructions.
	OpEmitCode Operation = "emit-code"
	// OpEmitFormula renders a live formula plus its text.
	OpEmitFormula Operation = "emit-formula"
	// OpEmitControl renders form-control setup instructions.
	OpEmitControl Operation = "emit-control"
)

// ValidationError reports a rejected request. Kind is "missing-field" or
// "wrong-type".
type ValidationError struct {
	Kind  string
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("render: %s: %s", e.Kind, e.Field)
}

// ControlConfig describes a form-control button wired to a macro.
type ControlConfig struct {
	ButtonText string `json:"button_text"`
	ButtonName string `json:"button_name"`
	MacroName  string `json:"macro_name"`
}

// Request is one workbook to render. Code is used by emit-code, Formula
// by emit-formula, Control by emit-control.
type Request struct {
	Operation Operation      `json:"operation"`
	Code      string         `json:"code,omitempty"`
	Formula   string         `json:"formula,omitempty"`
	Control   *ControlConfig `json:"control,omitempty"`
}

const (
	sheetName = "Sheet1"
	creator   = "Excel VBA Generator"
)

var subNameRe = regexp.MustCompile(`Sub\s+(\w+)`)

// MacroName extracts the first Sub name from VBA source, defaulting to
// Macro1.
func MacroName(code string) string {
	if m := subNameRe.FindStringSubmatch(code); m != nil {
		return m[1]
	}
	return "Macro1"
}

// Render produces the workbook bytes for one request.
func Render(req Request) ([]byte, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetDocProps(&excelize.DocProperties{
		Creator:        creator,
		LastModifiedBy: creator,
	}); err != nil {
		return nil, fmt.Errorf("set document properties: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 14},
	})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}
	boldStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
	})
	if err != nil {
		return nil, fmt.Errorf("create bold style: %w", err)
	}
	warnStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FF0000"},
	})
	if err != nil {
		return nil, fmt.Errorf("create warning style: %w", err)
	}

	setCell(f, "A1", creator)
	_ = f.SetCellStyle(sheetName, "A1", "A1", headerStyle)

	switch req.Operation {
	case OpEmitCode:
		setCell(f, "A3", "Instructions for implementing VBA code:")
		setCell(f, "A4", "1. Open Visual Basic Editor (Alt + F11)")
		setCell(f, "A5", "2. Insert > Module")
		setCell(f, "A6", "3. Copy and paste the following code:")
		setCell(f, "A7", req.Code)
		setCell(f, "A9", "Important: Save this workbook as a macro-enabled file (.xlsm)")
		_ = f.SetCellStyle(sheetName, "A3", "A3", boldStyle)
		_ = f.SetCellStyle(sheetName, "A9", "A9", warnStyle)
		_ = f.SetColWidth(sheetName, "A", "A", 100)

	case OpEmitFormula:
		setCell(f, "A3", "Formula:")
		if err := f.SetCellFormula(sheetName, "B3", req.Formula); err != nil {
			return nil, fmt.Errorf("set formula: %w", err)
		}
		setCell(f, "A4", "Formula text:")
		setCell(f, "B4", req.Formula)
		_ = f.SetCellStyle(sheetName, "A3", "A4", boldStyle)
		_ = f.SetColWidth(sheetName, "A", "B", 30)

	case OpEmitControl:
		cfg := req.Control
		setCell(f, "A3", "Button Configuration:")
		setCell(f, "A4", "1. Enable Developer tab in Excel:")
		setCell(f, "A5", `   - File > Options > Customize Ribbon > Check "Developer"`)
		setCell(f, "A6", `2. On Developer tab, click "Insert" and choose "Button (Form Control)"`)
		setCell(f, "A7", "3. Draw button on worksheet")
		setCell(f, "A8", "4. Configure button with these settings:")
		setCell(f, "A9", "   - Button Text: "+cfg.ButtonText)
		setCell(f, "A10", "   - Macro Name: "+cfg.MacroName)
		_ = f.SetCellStyle(sheetName, "A3", "A3", boldStyle)
		_ = f.SetColWidth(sheetName, "A", "A", 80)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func validate(req Request) error {
	switch req.Operation {
	case OpEmitCode:
		if req.Code == "" {
			return &ValidationError{Kind: "missing-field", Field: "code"}
		}
	case OpEmitFormula:
		if req.Formula == "" {
			return &ValidationError{Kind: "missing-field", Field: "formula"}
		}
	case OpEmitControl:
		if req.Control == nil {
			return &ValidationError{Kind: "missing-field", Field: "control"}
		}
		if req.Control.ButtonText == "" {
			return &ValidationError{Kind: "missing-field", Field: "control.button_text"}
		}
		if req.Control.ButtonName == "" {
			return &ValidationError{Kind: "missing-field", Field: "control.button_name"}
		}
		if req.Control.MacroName == "" {
			return &ValidationError{Kind: "missing-field", Field: "control.macro_name"}
		}
	case "":
		return &ValidationError{Kind: "missing-field", Field: "operation"}
	default:
		return &ValidationError{Kind: "wrong-type", Field: "operation"}
	}
	return nil
}

func setCell(f *excelize.File, cell, value string) {
	_ = f.SetCellStr(sheetName, cell, value)
}
