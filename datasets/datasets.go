// Package datasets provides the dataset implementations used to train the
// image-downsampling and joint text-to-speech models.
//
// Every dataset here follows the same two-level design:
//
//   - An indexable per-sample API (Len + Sample(i)) that loads exactly one
//     example lazily from disk. Datasets store only paths and index tables;
//     media files are opened when a sample is requested, keeping memory
//     usage flat no matter how large the corpus is.
//   - A batch API implementing gomlx's train.Dataset interface
//     (Name / Yield / Reset) so the datasets plug straight into train.Loop
//     and the datasets.Parallel prefetcher that ships with gomlx.
//
// Layout and intended usage:
//
// DownsampleDataset
//   - Pairs a high-quality ("GT") image corpus with an independently indexed
//     low-quality ("LQ") corpus, both served from directories or read-only
//     LMDB stores.
//   - Per sample: aligned crop/resize, optional flip/rotation augmentation,
//     optional synthetic JPEG compression artifacts on the GT image, and a
//     downsampled copy of the GT image for pixel losses.
//
// GrandConjoinedDataset
//   - Joins an unpaired text corpus, an unpaired speech corpus and a paired
//     speech+text corpus of different sizes into one virtual dataset whose
//     length is the maximum of the three; each lookup wraps the index
//     modulo every sub-dataset's length.
//   - Tokenization happens at this level so all three branches share one
//     tokenizer.
//
// The sub-datasets (PairedVoiceDataset, UnsupervisedAudioDataset,
// TextCorpus) are exported as well and usable on their own.
package datasets

// Sized is the minimal interface shared by every indexable dataset in this
// package.
type Sized interface {
	Len() int
}
