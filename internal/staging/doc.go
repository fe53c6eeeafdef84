// Package staging manages the directory genomes are downloaded into before
// kraken2-build consumes them.
//
// A staging area is owned by one database label. It is created at the start
// of a run, populated by ncbi-genome-download, expanded (.fna.gz to .fna) and
// handed to kraken2-build. It is kept after failures so a rerun can resume.
package staging
