// Package crud implements generic request handling for Create, GetByID, Update,
// PartialUpdate, Delete and the opt-in GetByOwnerID verbs.
//
// Every verb follows the same shape: validate, act, wrap. Validation is a
// three-stage chain held in a Validator per verb:
//
//   - Parameter: the request envelope was built correctly by the calling code.
//     Failures are returned as a *ParameterError in addition to a rejected result.
//   - Entity: the payload satisfies its field rules (struct tags or ozzo rules).
//   - Authority: the requester may act on the targeted entities.
//
// Entity and authority failures are reported inside a rejected APIResult and are
// never returned as Go errors. Store failures propagate as wrapped errors.
//
// Ownership enforcement is opt-in through EnableOwnership, which swaps the
// default no-op authority checks for owner comparisons and unlocks GetByOwnerID.
package crud
