package policy

// builtinPolicy is the default prune stance: nothing the manifest does not
// recognize is ever removed. User policies loaded into the same package add
// allow rules for the exceptions they want.
const builtinPolicy = `package hostconform.prune

import rego.v1

default allow := false
`
