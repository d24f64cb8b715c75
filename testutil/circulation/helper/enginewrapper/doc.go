// Package enginewrapper provides adapter-switchable engine construction for
// tests, selected through the ADAPTER_TYPE env variable.
package enginewrapper
