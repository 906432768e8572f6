package sectioner

const sectioningSystemPrompt = `You are a legal document parser that returns only valid JSON.`

const sectioningPrompt = `Analyze the following legal text and divide it into logical sections.

For each section identified:
1. Give it a descriptive title
2. Assign it a section number (starting from 1)
3. Include all relevant content for that section

Return your response as a JSON array where each object has:
- "section_number": string (e.g., "1", "2", "3")
- "title": string (descriptive title for the section)
- "content": string (the full text content for this section)

Make sure each section is complete and self-contained. If there are subsections or numbered items, keep them together with their parent section.

Legal text to analyze:
%s

Respond with only the JSON array, no other text.`
