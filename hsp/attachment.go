package hsp

// Attachment is a pair of optional hook functions fired around a state's
// execution: Post of the previous state, then Pre of the next one. Both may
// be nil.
type Attachment struct {
	Pre  func(h *HSP)
	Post func(h *HSP)
}

// attachmentMetadata is the convention a state's Metadata must follow for
// AttachmentTransition to find its Attachment: metadata implementing this
// interface exposes one.
type attachmentMetadata interface {
	Attachment() Attachment
}

// AttachmentData is the transition data AttachmentTransition expects: the
// "overall" attachment whose Pre/Post fire as frame entry/exit hooks at
// stack ends (i.e. when prev or next is the null state).
type AttachmentData struct {
	Overall Attachment
}

// AttachmentTransition is the built-in "attachments_handler" transition of
// spec.md §4.9: it fires the previous state's Post attachment, then the
// next state's Pre attachment, substituting the overall attachment's
// Post/Pre at stack ends. It never requests a transitional state (it always
// returns use=false), since its only role is the hook side effects.
func AttachmentTransition(h *HSP, prev, next State, transitionData any) (State, bool) {
	data, _ := transitionData.(*AttachmentData)
	if data == nil {
		return State{}, false
	}

	if prev.IsNull() {
		// Stack start: substitute the overall attachment's Pre as the
		// frame-entry hook in place of a real previous state's Post.
		if data.Overall.Pre != nil {
			data.Overall.Pre(h)
		}
	} else if am, ok := prev.Metadata.(attachmentMetadata); ok {
		if post := am.Attachment().Post; post != nil {
			post(h)
		}
	}

	if next.IsNull() {
		// Stack end: substitute the overall attachment's Post as the
		// frame-exit hook in place of a real next state's Pre.
		if data.Overall.Post != nil {
			data.Overall.Post(h)
		}
	} else if am, ok := next.Metadata.(attachmentMetadata); ok {
		if pre := am.Attachment().Pre; pre != nil {
			pre(h)
		}
	}

	return State{}, false
}
