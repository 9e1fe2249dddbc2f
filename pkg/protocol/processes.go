package protocol

import (
	"encoding/json"
	"strconv"
)

// ProcessInfo is one record in a terminal.listProcesses result.
type ProcessInfo struct {
	PID  int64  `json:"pid"`
	Name string `json:"name"`
}

// ParseProcessList decodes a listProcesses result. Entries must carry a
// numeric-like PID and a non-empty name; entries failing that shape are
// discarded. A result that is not a list at all returns (nil, false) so the
// caller can clear a stale process list instead of keeping it.
func ParseProcessList(raw json.RawMessage) ([]ProcessInfo, bool) {
	var entries []map[string]any
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, false
	}

	procs := make([]ProcessInfo, 0, len(entries))
	for _, entry := range entries {
		pid, ok := processPID(entry)
		if !ok {
			continue
		}
		name, ok := processName(entry)
		if !ok {
			continue
		}
		procs = append(procs, ProcessInfo{PID: pid, Name: name})
	}
	return procs, true
}

func processPID(entry map[string]any) (int64, bool) {
	for _, key := range []string{"pid", "Pid", "PID"} {
		v, ok := entry[key]
		if !ok {
			continue
		}
		switch n := v.(type) {
		case float64:
			return int64(n), true
		case string:
			parsed, err := strconv.ParseInt(n, 10, 64)
			if err != nil {
				return 0, false
			}
			return parsed, true
		default:
			return 0, false
		}
	}
	return 0, false
}

func processName(entry map[string]any) (string, bool) {
	for _, key := range []string{"name", "Name"} {
		if v, ok := entry[key]; ok {
			name, ok := v.(string)
			if !ok || name == "" {
				return "", false
			}
			return name, true
		}
	}
	return "", false
}
