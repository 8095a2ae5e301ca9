// Package download fetches release artifacts from ranked mirrors and checks
// their detached signatures.
//
// A Pipeline performs one atomic transfer: the body is written inside a
// temporary directory next to the destination and renamed into place only
// after the full length arrived. A Fetcher walks the ranked candidate URLs
// for a version, retrying across mirrors. When the release class requires a
// signature, the artifact and signature are staged beside the destination
// and moved into place only after a Verifier accepts them; otherwise both
// are discarded.
package download
