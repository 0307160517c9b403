package memstore

import (
	"testing"

	"MarksAPI/internal/repository/storetest"
)

func TestContract(t *testing.T) {
	s := New()
	storetest.Run(t, storetest.Stores{Users: s.Users(), Marks: s.Marks(), Emails: s.AuthorizedEmails()})
}
