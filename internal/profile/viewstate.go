package profile

// ViewState is the top level screen a user should be on.
type ViewState string

const (
	ViewWelcome   ViewState = "welcome"
	ViewCapture   ViewState = "capture"
	ViewDashboard ViewState = "dashboard"
)

// ResolveViewState decides the view from the current inputs only. It is
// called again whenever authentication or the stored profile changes.
func ResolveViewState(authenticated bool, p *Profile) ViewState {
	if !authenticated {
		return ViewWelcome
	}
	if p != nil && len(p.DietTypes) > 0 && len(p.Goals) > 0 {
		return ViewDashboard
	}
	return ViewCapture
}
