// Package storage provides the dataset manifest collaborator.
//
// A manifest records, per dataset, the train and validation file lists, their
// labels and the mean image. It is kept in an embedded Badger store so the
// operator imports it once and every worker on the host reads it at start.
package storage
