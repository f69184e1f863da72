package comparator

// Model contains operands and operator for the comparison operations
// a and b attribute belongs to operands and operator attribute belongs to operator
type Model struct {
	a        float64
	b        float64
	operator string
}

// FirstValue sets the first operand
func FirstValue(a float64) *Model {
	model := Model{}
	return model.FirstValue(a)
}

// FirstValue sets the first operand
func (model *Model) FirstValue(a float64) *Model {
	model.a = a
	return model
}

// SecondValue sets the second operand
func (model *Model) SecondValue(b float64) *Model {
	model.b = b
	return model
}

// Criteria sets the criteria/operator
func (model *Model) Criteria(criteria string) *Model {
	model.operator = criteria
	return model
}
