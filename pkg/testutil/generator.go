package testutil

import "github.com/vanderheijden86/refnet/internal/datasource"

// Populate adds generated fixture users to the fake network.
func Populate(net *Network, users []datasource.FixtureUser) {
	for _, u := range users {
		net.Add(u.ParentID, u.ID, u.FullName)
	}
}
