package mongo

var (
	BindIDs  = bindIDs
	IDString = idString
	ToFields = toFields
)
