package models

// Application is the engine's view of one admission application: an
// identifier, the category that selects the workflow definition, and a
// key-value snapshot of the data conditions evaluate against. The full
// applicant record lives outside the engine.
type Application struct {
	ID       string         `json:"id"       validate:"required"`
	Category string         `json:"category"`
	Data     map[string]any `json:"data,omitempty"`
}

// Snapshot merges the application data with per-event context data into a
// fresh map. Context fields win over stored fields, letting an inbound
// trigger carry fresher values than the last persisted snapshot.
func (a *Application) Snapshot(contextData map[string]any) map[string]any {
	merged := make(map[string]any, len(a.Data)+len(contextData))

	for k, v := range a.Data {
		merged[k] = v
	}

	for k, v := range contextData {
		merged[k] = v
	}

	return merged
}
