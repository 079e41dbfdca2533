// Package ldapline is a client-side LDAP session layer: one connection,
// one message counter, and explicit tracking of every in-flight search.
//
// A session is created with Connect, which dials, negotiates TLS and binds
// in one step:
//
//	conn, err := ldapline.Connect(ldapline.Config{
//		URL:      "ldap://ds.example.com/ou=people,dc=example,dc=com??sub",
//		BindDN:   "cn=admin,dc=example,dc=com",
//		Password: "secret",
//		PageSize: 500,
//	})
//
// Searches return a SearchOperation that tracks its own progress. In the
// default synchronous mode Search blocks until the first page has arrived;
// an operation that reports More has further pages behind NextPage, and
// SearchAll walks the whole chain in one call. With Config.Async set,
// Search returns as soon as the request is written and Result polls
// without blocking, returning PollPending until a page completes.
//
// Synchronous calls block without a deadline while the server works, the
// same way the underlying protocol does. Callers that need cancellation
// should use the asynchronous mode and poll on their own schedule.
package ldapline
