// Package chunker turns document summaries into ingestable chunks.
//
// A summary is split on blank lines. Paragraphs shorter than
// MinParagraphLength characters are skipped. A leading [dd.mm.yyyy] date is
// recorded in the date_inside metadata field, and each chunk carries a
// chars/4 token estimate, source "summary" and confirmed = 1.
//
// # Basic Usage
//
//	c := chunker.New(extractor, logger)
//	chunks, err := c.Chunk(ctx, summary)
//	if err != nil {
//	    return err
//	}
//	err = svc.Ingest(ctx, ownerID, documentID, chunks)
package chunker
