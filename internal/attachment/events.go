package attachment

import "context"

// SecurityMode distinguishes the cheap pre-upload veto from the
// thorough scan the background worker runs once a file has at least
// one reference, spec §4.7.
type SecurityMode int

const (
	FastCheck SecurityMode = iota
	ThoroughCheck
)

// SecurityVerdict is what a check_attachment_security listener reports.
type SecurityVerdict struct {
	Insecure bool
	Reason   string
}

// SecurityListener inspects an attachment's bytes and votes on whether
// it is safe to keep. data is the full attachment payload; callers
// wanting streaming scans can memoize on mimeType instead.
type SecurityListener func(ctx context.Context, mode SecurityMode, data []byte, mimeType string) (SecurityVerdict, error)

// ProcessResult reports the variants a process_attachment listener
// generated. A zero field means "not applicable or not smaller than
// the original", spec §4.7.
type ProcessResult struct {
	GzipSize         int64
	MinifiedSize     int64
	MinifiedGzipSize int64
}

// ProcessListener generates derived copies (gzip, minified) of a
// verified-secure attachment.
type ProcessListener func(ctx context.Context, md5Hex string, data []byte, mimeType string) (ProcessResult, error)

// Events is the Attachment Engine's plugin hook surface. Per spec
// design notes §9 this replaces the original's boolean-returning
// "does any plugin object" signal with an explicit listener list: the
// security check is a veto gate (first insecure verdict wins and stops
// the scan), while process_attachment fans out to every listener and
// merges whatever each one produced; a listener error stops that
// fan-out.
type Events struct {
	security []SecurityListener
	process  []ProcessListener
}

// NewEvents returns an empty bus.
func NewEvents() *Events {
	return &Events{}
}

// OnSecurityCheck registers a check_attachment_security listener.
func (e *Events) OnSecurityCheck(l SecurityListener) {
	e.security = append(e.security, l)
}

// OnProcess registers a process_attachment listener.
func (e *Events) OnProcess(l ProcessListener) {
	e.process = append(e.process, l)
}

// CheckSecurity runs every listener in order and stops at the first
// insecure verdict. No listeners registered means "trusted by default".
func (e *Events) CheckSecurity(ctx context.Context, mode SecurityMode, data []byte, mimeType string) (SecurityVerdict, error) {
	for _, l := range e.security {
		verdict, err := l(ctx, mode, data, mimeType)
		if err != nil {
			return SecurityVerdict{}, err
		}
		if verdict.Insecure {
			return verdict, nil
		}
	}
	return SecurityVerdict{}, nil
}

// EmitProcess runs every process_attachment listener in order, merging
// results by taking the first non-zero value reported for each variant.
// The first listener error stops the run and is returned with an empty
// result.
func (e *Events) EmitProcess(ctx context.Context, md5Hex string, data []byte, mimeType string) (ProcessResult, error) {
	var merged ProcessResult
	for _, l := range e.process {
		r, err := l(ctx, md5Hex, data, mimeType)
		if err != nil {
			return ProcessResult{}, err
		}
		if merged.GzipSize == 0 {
			merged.GzipSize = r.GzipSize
		}
		if merged.MinifiedSize == 0 {
			merged.MinifiedSize = r.MinifiedSize
		}
		if merged.MinifiedGzipSize == 0 {
			merged.MinifiedGzipSize = r.MinifiedGzipSize
		}
	}
	return merged, nil
}
