package library

// CardActions lists the buttons a book card offers.
type CardActions struct {
	Borrow bool
	Return bool
	Edit   bool
	Delete bool
}

// ActionsFor decides which actions a book card shows for role. Borrowed
// books cannot be deleted, and nothing is actionable while loading.
func ActionsFor(b Book, role Role, loading bool) CardActions {
	if loading {
		return CardActions{}
	}
	a := CardActions{
		Borrow: b.Available,
		Return: !b.Available,
	}
	if role == RoleAdmin {
		a.Edit = true
		a.Delete = b.Available
	}
	return a
}

// Status is the availability badge text.
func (b Book) Status() string {
	if b.Available {
		return "Available"
	}
	return "Borrowed"
}
