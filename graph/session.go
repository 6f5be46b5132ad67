package graph

import "fmt"

// Session purposes. These four strings are part of the wire contract with
// the gateway — do not rename them.
const (
	PurposeClawdini = "clawdini"
	PurposeMerge    = "merge"
	PurposeJudge    = "judge"
	PurposeExtract  = "extract"
)

// SessionKey builds the structured string that names a chat session with
// the gateway: agent:<agentId>:<purpose>:<runId>:<nodeId>. Scoping by both
// runId and nodeId guarantees concurrent nodes in the same run, and the
// same node across concurrent runs, never share a session.
func SessionKey(agentID, purpose, runID, nodeID string) string {
	return fmt.Sprintf("agent:%s:%s:%s:%s", agentID, purpose, runID, nodeID)
}
