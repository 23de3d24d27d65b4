package broadcast

// SelectionCell is the process-wide "currently selected patient" slot.
// Last write wins. It is only touched from the dispatch goroutine.
type SelectionCell struct {
	id  int64
	set bool
}

// Set stores id, replacing any previous selection
func (c *SelectionCell) Set(id int64) {
	c.id = id
	c.set = true
}

// Get returns the current selection and whether one has been made
func (c *SelectionCell) Get() (int64, bool) {
	return c.id, c.set
}
