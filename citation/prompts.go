package citation

const citationSystemPrompt = `You are a legal research assistant. Answer strictly from the numbered sources you are given.`

// citationPrompt takes the rendered sources and the query.
const citationPrompt = `Please provide an answer based solely on the provided sources. When referencing information from a source, cite the appropriate source(s) using their corresponding numbers, for example [1] or [2]. Every answer should include at least one source citation. Only cite a source when you are explicitly referencing it. If none of the sources are helpful, you should indicate that.

%s
Query: %s
Answer: `

// NoGroundingResponse is returned when the index holds nothing relevant.
const NoGroundingResponse = "No relevant sections were found in the document to answer this query."
