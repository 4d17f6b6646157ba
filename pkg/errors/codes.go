package errors

// Bridge error codes
const (
	CodeInternal int = 1000

	// Connection lifecycle (1100-1199)
	CodeNoHostAvailable  int = 1100 // no known native surface and no fallback engaged
	CodeNotConnected     int = 1101 // RPC attempted outside Connected state
	CodeConnectionFailed int = 1102 // connect probe failed
	CodeConnectionLost   int = 1103 // previously connected strategy failed mid-session
	CodeConnectionClosed int = 1104 // pending request rejected by disconnect

	// Calls (1200-1299)
	CodeRequestTimeout int = 1200 // round trip exceeded its deadline
	CodeHostCallFailed int = 1201 // native call failed or returned an unusable shape

	// Policy (1300-1399)
	CodeMinimumRosterSize int = 1300 // removal would leave fewer than two active entries

	// Validation (1400-1499)
	CodeInvalidArgument int = 1400
)

// CodeInfo provides human-readable information about error codes
type CodeInfo struct {
	Code        int
	Name        string
	Description string
	Category    Category
	Severity    Severity
}

var codeRegistry = map[int]CodeInfo{
	CodeInternal: {CodeInternal, "INTERNAL", "Internal error", CategoryInternal, SeverityError},

	CodeNoHostAvailable:  {CodeNoHostAvailable, "NO_HOST_AVAILABLE", "No host surface available", CategoryConnection, SeverityWarning},
	CodeNotConnected:     {CodeNotConnected, "NOT_CONNECTED", "Bridge is not connected", CategoryConnection, SeverityError},
	CodeConnectionFailed: {CodeConnectionFailed, "CONNECTION_FAILED", "Connection attempt failed", CategoryConnection, SeverityError},
	CodeConnectionLost:   {CodeConnectionLost, "CONNECTION_LOST", "Connection lost", CategoryConnection, SeverityError},
	CodeConnectionClosed: {CodeConnectionClosed, "CONNECTION_CLOSED", "Connection closed", CategoryConnection, SeverityInfo},

	CodeRequestTimeout: {CodeRequestTimeout, "REQUEST_TIMEOUT", "Request timed out", CategoryTimeout, SeverityError},
	CodeHostCallFailed: {CodeHostCallFailed, "HOST_CALL_FAILED", "Host call failed", CategoryHost, SeverityError},

	CodeMinimumRosterSize: {CodeMinimumRosterSize, "MINIMUM_ROSTER_SIZE", "Roster must keep at least two active entries", CategoryPolicy, SeverityWarning},

	CodeInvalidArgument: {CodeInvalidArgument, "INVALID_ARGUMENT", "Invalid argument", CategoryValidation, SeverityError},
}

func codeInfo(code int) CodeInfo {
	if info, ok := codeRegistry[code]; ok {
		return info
	}
	return CodeInfo{Code: code, Name: "UNKNOWN", Description: "Unknown error", Category: CategoryInternal, Severity: SeverityError}
}

// GetCodeInfo returns information about an error code
func GetCodeInfo(code int) (CodeInfo, bool) {
	info, ok := codeRegistry[code]
	return info, ok
}

// CodeName returns the symbolic name of an error code
func CodeName(code int) string {
	return codeInfo(code).Name
}

