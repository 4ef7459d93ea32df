package ranker

// DecodePairwiseParams exposes decodePairwiseParams to the external test package.
var DecodePairwiseParams = decodePairwiseParams
