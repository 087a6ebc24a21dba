package runner

import (
	"encoding/json"
	"io"
)

// streamLine is the subset of a stream-json event the scheduler cares
// about. The CLI emits one JSON object per line; the final line has
// type "result" and carries the run verdict.
type streamLine struct {
	Type    string `json:"type"`
	Subtype string `json:"subtype"`
	IsError bool   `json:"is_error"`
	Result  string `json:"result"`
}

type streamResult struct {
	sawResult bool
	success   bool
	errorText string
}

// drainStream copies every stdout line into the task log verbatim while
// watching for the result event. Lines that are not valid JSON are logged
// anyway and otherwise ignored.
func drainStream(r io.Reader, log io.Writer) streamResult {
	var out streamResult
	sc := newLineScanner(r)
	for sc.Scan() {
		line := sc.Bytes()
		log.Write(line)
		log.Write([]byte{'\n'})

		var ev streamLine
		if err := json.Unmarshal(line, &ev); err != nil {
			continue
		}
		if ev.Type != "result" {
			continue
		}
		out.sawResult = true
		out.success = ev.Subtype == "success" && !ev.IsError
		if !out.success {
			out.errorText = firstLine(ev.Result)
			if out.errorText == "" {
				out.errorText = "agent reported " + ev.Subtype
			}
		}
	}
	return out
}
