package errors

import "fmt"

// ProjectNotFound creates a project not found error
func ProjectNotFound(path string) *DashError {
	return New(ErrCodeProjectNotFound, fmt.Sprintf("project path not found: %s", path)).
		WithDetail("path", path)
}

// NotBmadProject creates an error for a directory without a .bmad marker
func NotBmadProject(path string) *DashError {
	return New(ErrCodeNotBmadProject, fmt.Sprintf("directory is not a BMAD project: %s", path)).
		WithDetail("path", path)
}

// InvalidPath creates an invalid path error
func InvalidPath(reason string) *DashError {
	return New(ErrCodeInvalidPath, fmt.Sprintf("invalid path: %s", reason))
}

// InvalidRequest creates a malformed request error
func InvalidRequest(reason string) *DashError {
	return New(ErrCodeInvalidRequest, reason)
}

// ParseError creates a manifest parse error
func ParseError(file string, err error) *DashError {
	return Wrap(err, ErrCodeParseError, fmt.Sprintf("failed to parse %s", file)).
		WithDetail("file", file)
}

// StoryNotFound creates a story lookup error
func StoryNotFound(storyID string) *DashError {
	return New(ErrCodeStoryNotFound, fmt.Sprintf("story '%s' not found", storyID)).
		WithDetail("storyId", storyID)
}

// SendFailed creates an input dispatch failure error
func SendFailed(detail string) *DashError {
	return New(ErrCodeSendFailed, fmt.Sprintf("failed to send input: %s", detail))
}

// LaunchFailed creates an assistant launch failure error
func LaunchFailed(err error) *DashError {
	return Wrap(err, ErrCodeLaunchFailed, "failed to launch assistant")
}
